package handler

import (
	"luftscan/internal/collapse"
	dErrors "luftscan/pkg/domain-errors"
)

// CriterionRequest is one encounter in SI units. Q_c and foam_beta
// default to 1 when absent; an explicit value must be positive.
type CriterionRequest struct {
	Mass            float64  `json:"M"`
	Pericenter      float64  `json:"r_p"`
	Velocity        float64  `json:"v_rel"`
	Coupling        float64  `json:"alpha"`
	EquivalentMass  float64  `json:"m_eq"`
	DensityContrast float64  `json:"density_contrast"`
	FoamExponent    *float64 `json:"foam_beta"`
	Threshold       *float64 `json:"Q_c"`
}

func (r CriterionRequest) Validate() error {
	if r.Threshold != nil && !(*r.Threshold > 0) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "Q_c must be positive, got %g", *r.Threshold)
	}
	if r.FoamExponent != nil && !(*r.FoamExponent > 0) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "foam_beta must be positive, got %g", *r.FoamExponent)
	}
	return nil
}

func (r CriterionRequest) Inputs() collapse.Inputs {
	return collapse.Inputs{
		Mass:             r.Mass,
		Pericenter:       r.Pericenter,
		RelativeVelocity: r.Velocity,
		Coupling:         r.Coupling,
		EquivalentMass:   r.EquivalentMass,
		DensityContrast:  r.DensityContrast,
	}
}

func (r CriterionRequest) Model() collapse.Model {
	if r.FoamExponent == nil {
		return collapse.Model{}
	}
	return collapse.Model{FoamExponent: *r.FoamExponent}
}

func (r CriterionRequest) threshold() float64 {
	if r.Threshold == nil {
		return collapse.DefaultThreshold
	}
	return *r.Threshold
}
