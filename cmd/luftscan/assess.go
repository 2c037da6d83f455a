package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"luftscan/internal/catalog"
	"luftscan/internal/collapse"
)

type assessOptions struct {
	path      string
	filter    catalog.Filter
	a         catalog.Assumptions
	threshold float64
	json      bool
}

func newAssessCmd() *cobra.Command {
	o := &assessOptions{}
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess every catalogue candidate against the collapse criterion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAssess(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.path, "catalog", "", "JSON candidate catalogue")
	f.StringVar(&o.filter.Survey, "survey", "", "only candidates from this survey")
	f.Float64Var(&o.filter.MinRedshift, "min-z", 0, "minimum redshift")
	f.Float64Var(&o.filter.MaxRedshift, "max-z", 0, "maximum redshift, 0 for none")
	f.Float64Var(&o.a.Coupling, "alpha", 0, "coupling alpha")
	f.Float64Var(&o.a.EquivalentMass, "m-eq", 0, "equivalent mass m_eq in kg")
	f.Float64Var(&o.a.DensityContrast, "density-contrast", 0, "density contrast")
	f.Float64Var(&o.a.FoamExponent, "foam-beta", 1, "amplification exponent")
	f.Float64Var(&o.threshold, "threshold", collapse.DefaultThreshold, "nucleation threshold Q_c")
	f.BoolVar(&o.json, "json", false, "print JSON")
	for _, name := range []string{"catalog", "alpha", "m-eq"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runAssess(cmd *cobra.Command, o *assessOptions) error {
	st, err := catalog.Load(o.path)
	if err != nil {
		return err
	}
	o.a.Threshold = &o.threshold
	out, err := catalog.Assess(cmd.Context(), st, o.filter, o.a)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if o.json {
		return writeJSON(w, out)
	}
	rows := make([][]string, len(out))
	hits := 0
	for i, as := range out {
		c := as.Candidate
		row := []string{c.Name, c.Survey, num(c.Redshift)}
		switch {
		case as.Report == nil:
			row = append(row, "-", "-", "error: "+as.Error)
		case as.Report.Nucleates:
			hits++
			row = append(row, num(as.Report.Q), num(as.Report.Margin), "nucleates")
		default:
			row = append(row, num(as.Report.Q), num(as.Report.Margin), "no")
		}
		rows[i] = row
	}
	renderTable(w, []string{"candidate", "survey", "z", "Q", "margin", "verdict"}, rows)
	fmt.Fprintf(w, "%d of %d candidates nucleate\n", hits, len(out))
	return nil
}
