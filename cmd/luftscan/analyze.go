package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"luftscan/internal/prior"
	"luftscan/internal/results"
	"luftscan/internal/scan"
	"luftscan/internal/sensitivity"
)

type analyzeOptions struct {
	input      string
	method     string
	observable string
	target     float64
	top        int
	samples    int
	scenario   string
	json       bool
}

// analysis is the JSON form of the analyze output.
type analysis struct {
	Summary  sensitivity.Summary  `json:"summary"`
	Matrix   *sensitivity.Matrix  `json:"matrix"`
	Ranking  []sensitivity.Ranked `json:"ranking"`
	BestFits []bestFit            `json:"best_fits,omitempty"`
	Bounds   []prior.Parameter    `json:"suggested_bounds,omitempty"`
}

type bestFit struct {
	Index      int                `json:"index"`
	Parameters map[string]float64 `json:"parameters"`
	Value      sensitivity.Number `json:"value"`
}

func newAnalyzeCmd() *cobra.Command {
	o := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize a CSV export and rank parameter sensitivities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.input, "input", "i", "", "CSV export of a scan")
	f.StringVar(&o.method, "method", string(sensitivity.Pearson), "correlation method: pearson or spearman")
	f.StringVar(&o.observable, "observable", "Q", "observable to rank parameters against")
	f.Float64Var(&o.target, "target", 0, "list the rows whose observable is closest to this value")
	f.IntVar(&o.top, "top", 5, "number of best-fit rows")
	f.IntVar(&o.samples, "samples", 0, "samples the scan requested; a shorter export reads as truncated")
	f.StringVar(&o.scenario, "scenario", "", "scenario the export came from, for bound suggestions")
	f.BoolVar(&o.json, "json", false, "print JSON instead of tables")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runAnalyze(cmd *cobra.Command, o *analyzeOptions) error {
	method, err := sensitivity.ParseMethod(o.method)
	if err != nil {
		return err
	}
	file, err := os.Open(o.input)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer file.Close()
	t, err := results.ReadCSV(file, nil, results.Requested(o.samples))
	if err != nil {
		return err
	}

	var out analysis
	if out.Summary, err = sensitivity.Summarize(t); err != nil {
		return err
	}
	if out.Matrix, err = sensitivity.Analyze(t, method); err != nil {
		return err
	}
	if out.Ranking, err = sensitivity.Rank(out.Matrix, o.observable); err != nil {
		return err
	}
	if cmd.Flags().Changed("target") {
		rows, err := sensitivity.BestFits(t, o.observable, o.target, o.top)
		if err != nil {
			return err
		}
		out.BestFits = bestFits(t.Schema(), o.observable, rows)
	}
	if o.scenario != "" {
		req, err := scan.LoadScenario(o.scenario)
		if err != nil {
			return err
		}
		if out.Bounds, err = sensitivity.SuggestBounds(t, req.Priors); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if o.json {
		return writeJSON(w, out)
	}
	printAnalysis(cmd, out, o.observable)
	return nil
}

func bestFits(schema results.Schema, observable string, rows []results.Row) []bestFit {
	o := schema.ObservableIndex(observable)
	out := make([]bestFit, len(rows))
	for i, r := range rows {
		params := make(map[string]float64, len(schema.Parameters))
		for j, name := range schema.Parameters {
			params[name] = r.Params[j]
		}
		out[i] = bestFit{Index: r.Index, Parameters: params, Value: sensitivity.Number(r.Observables[o])}
	}
	return out
}

func printAnalysis(cmd *cobra.Command, a analysis, observable string) {
	w := cmd.OutOrStdout()
	s := a.Summary
	heading(w, "Summary")
	fmt.Fprintf(w, "%d of %d samples, %d ok, %d failed, success rate %s, nucleation fraction %s\n",
		s.Completed, s.Requested, s.OK, s.Failed, num(float64(s.SuccessRate)), num(float64(s.NucleationFraction)))
	if s.Truncated {
		fmt.Fprintln(w, "table is truncated")
	}
	var stats [][]string
	for _, o := range s.Observables {
		stats = append(stats, []string{o.Name, num(float64(o.Mean)), num(float64(o.StdDev)), num(float64(o.Min)), num(float64(o.Max))})
	}
	renderTable(w, []string{"observable", "mean", "std dev", "min", "max"}, stats)

	m := a.Matrix
	heading(w, fmt.Sprintf("Correlation (%s, %d rows)", m.Method, m.Samples))
	rows := make([][]string, len(m.Parameters))
	for i, p := range m.Parameters {
		rows[i] = append([]string{p}, make([]string, len(m.Observables))...)
		for j := range m.Observables {
			rows[i][j+1] = num(m.Values[i][j])
		}
	}
	renderTable(w, append([]string{"parameter"}, m.Observables...), rows)

	heading(w, "Sensitivity of "+observable)
	ranked := make([][]string, len(a.Ranking))
	for i, r := range a.Ranking {
		ranked[i] = []string{fmt.Sprint(i + 1), r.Parameter, num(float64(r.Coefficient))}
	}
	renderTable(w, []string{"rank", "parameter", "coefficient"}, ranked)

	if len(a.BestFits) > 0 {
		heading(w, "Best fits")
		fits := make([][]string, len(a.BestFits))
		for i, f := range a.BestFits {
			fits[i] = []string{fmt.Sprint(f.Index), num(float64(f.Value))}
			for _, p := range m.Parameters {
				fits[i] = append(fits[i], num(f.Parameters[p]))
			}
		}
		renderTable(w, append([]string{"index", observable}, m.Parameters...), fits)
	}
	if a.Bounds != nil {
		heading(w, "Suggested bounds")
		bounds := make([][]string, len(a.Bounds))
		for i, p := range a.Bounds {
			bounds[i] = []string{p.Name, p.Kind.String(), num(p.Lower), num(p.Upper)}
		}
		renderTable(w, []string{"parameter", "kind", "lower", "upper"}, bounds)
	}
}
