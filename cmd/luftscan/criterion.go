package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"luftscan/internal/catalog"
	"luftscan/internal/collapse"
)

type criterionOptions struct {
	in        collapse.Inputs
	beta      float64
	threshold float64
	astro     bool
	json      bool
}

func newCriterionCmd() *cobra.Command {
	o := &criterionOptions{}
	cmd := &cobra.Command{
		Use:   "criterion",
		Short: "Evaluate the collapse criterion for one encounter",
		Long: `Evaluates Q, the nucleation verdict, the critical pericenter and the
coupling needed to reach the threshold. Inputs are SI unless --astro is
given, in which case mass is in solar masses, pericenter in kpc and
velocity in km/s.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCriterion(cmd, o)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&o.in.Mass, "mass", 0, "mass M")
	f.Float64Var(&o.in.Pericenter, "pericenter", 0, "pericenter distance r_p")
	f.Float64Var(&o.in.RelativeVelocity, "velocity", 0, "relative velocity v_rel")
	f.Float64Var(&o.in.Coupling, "alpha", 0, "coupling alpha")
	f.Float64Var(&o.in.EquivalentMass, "m-eq", 0, "equivalent mass m_eq in kg")
	f.Float64Var(&o.in.DensityContrast, "density-contrast", 0, "density contrast")
	f.Float64Var(&o.beta, "foam-beta", 1, "amplification exponent")
	f.Float64Var(&o.threshold, "threshold", collapse.DefaultThreshold, "nucleation threshold Q_c")
	f.BoolVar(&o.astro, "astro", false, "read mass, pericenter and velocity in astronomical units")
	f.BoolVar(&o.json, "json", false, "print JSON")
	for _, name := range []string{"mass", "pericenter", "velocity", "alpha", "m-eq"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCriterion(cmd *cobra.Command, o *criterionOptions) error {
	in := o.in
	if o.astro {
		in.Mass *= catalog.SolarMass
		in.Pericenter *= catalog.Kiloparsec
		in.RelativeVelocity *= catalog.KilometrePerSecond
	}
	r, err := collapse.Model{FoamExponent: o.beta}.Report(in, o.threshold)
	if err != nil {
		return err
	}
	if o.json {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	fmt.Fprintln(cmd.OutOrStdout(), r)
	return nil
}
