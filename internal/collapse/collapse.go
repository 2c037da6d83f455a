// Package collapse evaluates the lattice-collapse criterion for a close
// encounter between two mass concentrations.
//
// All quantities are SI: kilograms, meters, meters per second. The package
// performs no unit conversion. Every function is a pure function of its
// arguments and is safe for concurrent use.
package collapse

import (
	"errors"
	"fmt"
	"math"
)

const (
	// ReducedPlanck is ħ in J·s.
	ReducedPlanck = 1.054_571_817e-34
	// Gravitational is G in m³·kg⁻¹·s⁻².
	Gravitational = 6.674_30e-11
	// DefaultThreshold is the conventional Q_c. Callers pass it explicitly.
	DefaultThreshold = 1.0
)

// ErrDomain marks inputs for which the criterion is undefined or unphysical.
var ErrDomain = errors.New("collapse: domain error")

// Inputs are the physical quantities of one encounter.
type Inputs struct {
	Mass             float64 // M, kg
	Pericenter       float64 // r_p, m
	RelativeVelocity float64 // v_rel, m/s
	Coupling         float64 // alpha, dimensionless
	EquivalentMass   float64 // m_eq, kg
	DensityContrast  float64 // δρ/ρ, dimensionless; 0 disables amplification
}

// Model holds the amplification exponent. The zero value is usable and
// behaves like Default.
type Model struct {
	// FoamExponent is β in the amplification factor (max(0, 1+δ))^β.
	// Zero selects 1. Negative values make every evaluation a domain error.
	FoamExponent float64
}

// Default is the model with β = 1.
var Default = Model{FoamExponent: 1}

func (m Model) exponent() float64 {
	if m.FoamExponent == 0 {
		return 1
	}
	return m.FoamExponent
}

// Validate reports whether the model parameters are usable.
func (m Model) Validate() error {
	beta := m.exponent()
	if beta < 0 || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return fmt.Errorf("%w: foam exponent must be positive and finite, got %g", ErrDomain, m.FoamExponent)
	}
	return nil
}

// Amplification returns the density-contrast multiplier. It equals 1 at zero
// contrast, never decreases as contrast grows, and is floored at 0 for
// contrasts below -1.
func (m Model) Amplification(contrast float64) float64 {
	return math.Pow(math.Max(0, 1+contrast), m.exponent())
}

// Criterion computes Q = (ħ/m_eq)·α·(G·M)/(r_p·v_rel²)·F(δ).
func (m Model) Criterion(in Inputs) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := requirePositive("r_p", in.Pericenter); err != nil {
		return 0, err
	}
	if err := checkCommon(in); err != nil {
		return 0, err
	}
	base := (ReducedPlanck / in.EquivalentMass) * in.Coupling * (Gravitational * in.Mass) /
		(in.Pericenter * in.RelativeVelocity * in.RelativeVelocity)
	return base * m.Amplification(in.DensityContrast), nil
}

// Nucleates reports whether Criterion(in) >= threshold.
func (m Model) Nucleates(in Inputs, threshold float64) (bool, error) {
	if err := requireFinite("Q_c", threshold); err != nil {
		return false, err
	}
	q, err := m.Criterion(in)
	if err != nil {
		return false, err
	}
	return q >= threshold, nil
}

// CriticalPericenter returns the pericenter at which the criterion equals
// threshold, holding every other input fixed. in.Pericenter is ignored.
func (m Model) CriticalPericenter(in Inputs, threshold float64) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := checkCommon(in); err != nil {
		return 0, err
	}
	if err := requirePositive("Q_c", threshold); err != nil {
		return 0, err
	}
	r := (ReducedPlanck * in.Coupling * Gravitational * in.Mass) /
		(in.EquivalentMass * threshold * in.RelativeVelocity * in.RelativeVelocity)
	return r * m.Amplification(in.DensityContrast), nil
}

// RequiredCoupling returns the α at which the criterion equals threshold,
// holding every other input fixed. in.Coupling is ignored.
func (m Model) RequiredCoupling(in Inputs, threshold float64) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := requirePositive("r_p", in.Pericenter); err != nil {
		return 0, err
	}
	in.Coupling = 1
	if err := checkCommon(in); err != nil {
		return 0, err
	}
	if err := requirePositive("M", in.Mass); err != nil {
		return 0, err
	}
	if err := requirePositive("Q_c", threshold); err != nil {
		return 0, err
	}
	amp := m.Amplification(in.DensityContrast)
	if amp == 0 {
		return 0, fmt.Errorf("%w: amplification factor is zero at density contrast %g", ErrDomain, in.DensityContrast)
	}
	return threshold * in.EquivalentMass * in.Pericenter * in.RelativeVelocity * in.RelativeVelocity /
		(ReducedPlanck * Gravitational * in.Mass * amp), nil
}

// Criterion evaluates Default.Criterion.
func Criterion(in Inputs) (float64, error) { return Default.Criterion(in) }

// Nucleates evaluates Default.Nucleates.
func Nucleates(in Inputs, threshold float64) (bool, error) { return Default.Nucleates(in, threshold) }

// CriticalPericenter evaluates Default.CriticalPericenter.
func CriticalPericenter(in Inputs, threshold float64) (float64, error) {
	return Default.CriticalPericenter(in, threshold)
}

// RequiredCoupling evaluates Default.RequiredCoupling.
func RequiredCoupling(in Inputs, threshold float64) (float64, error) {
	return Default.RequiredCoupling(in, threshold)
}

// checkCommon validates the inputs shared by every operation except r_p.
func checkCommon(in Inputs) error {
	if err := requirePositive("v_rel", in.RelativeVelocity); err != nil {
		return err
	}
	if err := requirePositive("m_eq", in.EquivalentMass); err != nil {
		return err
	}
	if err := requireFinite("M", in.Mass); err != nil {
		return err
	}
	if err := requireFinite("alpha", in.Coupling); err != nil {
		return err
	}
	return requireFinite("density_contrast", in.DensityContrast)
}

func requirePositive(name string, v float64) error {
	if err := requireFinite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %g", ErrDomain, name, v)
	}
	return nil
}

func requireFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %g", ErrDomain, name, v)
	}
	return nil
}
