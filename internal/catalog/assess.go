package catalog

import (
	"context"

	"luftscan/internal/collapse"
	dErrors "luftscan/pkg/domain-errors"
)

// Assumptions are the model inputs a catalogue does not record. A nil
// Threshold means Q_c = 1.
type Assumptions struct {
	Coupling        float64  `json:"alpha"`
	EquivalentMass  float64  `json:"m_eq"`
	DensityContrast float64  `json:"density_contrast"`
	FoamExponent    float64  `json:"foam_beta"`
	Threshold       *float64 `json:"Q_c,omitempty"`
}

// Assessment is the collapse verdict for one candidate. Error is set
// instead of Report when the criterion is undefined for it.
type Assessment struct {
	Candidate Candidate        `json:"candidate"`
	Report    *collapse.Report `json:"report,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Inputs converts the candidate to SI model inputs.
func (c Candidate) Inputs(a Assumptions) collapse.Inputs {
	return collapse.Inputs{
		Mass:             c.MassSolar * SolarMass,
		Pericenter:       c.PericenterKpc * Kiloparsec,
		RelativeVelocity: c.VelocityKms * KilometrePerSecond,
		Coupling:         a.Coupling,
		EquivalentMass:   a.EquivalentMass,
		DensityContrast:  a.DensityContrast,
	}
}

// Assess evaluates every candidate matching f. A candidate the model
// rejects gets an Assessment with Error set; only store failures and
// unusable assumptions are errors.
func Assess(ctx context.Context, s Store, f Filter, a Assumptions) ([]Assessment, error) {
	threshold := collapse.DefaultThreshold
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	if !(threshold > 0) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid assumptions: Q_c must be positive, got %g", threshold)
	}
	model := collapse.Model{FoamExponent: a.FoamExponent}
	if err := model.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid assumptions")
	}
	candidates, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]Assessment, 0, len(candidates))
	for _, c := range candidates {
		r, err := model.Report(c.Inputs(a), threshold)
		if err != nil {
			out = append(out, Assessment{Candidate: c, Error: err.Error()})
			continue
		}
		out = append(out, Assessment{Candidate: c, Report: &r})
	}
	return out, nil
}
