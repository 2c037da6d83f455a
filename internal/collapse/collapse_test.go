package collapse

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solarMass  = 1.989e30
	kiloparsec = 3.086e19
)

// infinityGalaxy is 10⁹ M☉ passing at 1 kpc with 300 km/s.
func infinityGalaxy() Inputs {
	return Inputs{
		Mass:             1e9 * solarMass,
		Pericenter:       1 * kiloparsec,
		RelativeVelocity: 3e5,
		Coupling:         1e-3,
		EquivalentMass:   1e-5,
	}
}

func TestCriterion_ConcreteScenario(t *testing.T) {
	q, err := Criterion(infinityGalaxy())
	require.NoError(t, err)
	assert.InEpsilon(t, 5.04e-34, q, 1e-3)

	nucleates, err := Nucleates(infinityGalaxy(), DefaultThreshold)
	require.NoError(t, err)
	assert.False(t, nucleates)
}

func TestCriterion_Monotonicity(t *testing.T) {
	base := infinityGalaxy()

	t.Run("strictly decreasing in pericenter", func(t *testing.T) {
		prev := math.Inf(1)
		for _, scale := range []float64{0.01, 0.1, 1, 10, 100} {
			in := base
			in.Pericenter = base.Pericenter * scale
			q, err := Criterion(in)
			require.NoError(t, err)
			assert.Less(t, q, prev, "scale %g", scale)
			prev = q
		}
	})

	t.Run("strictly decreasing in relative velocity", func(t *testing.T) {
		prev := math.Inf(1)
		for _, v := range []float64{1e3, 1e4, 1e5, 1e6, 1e7} {
			in := base
			in.RelativeVelocity = v
			q, err := Criterion(in)
			require.NoError(t, err)
			assert.Less(t, q, prev, "v_rel %g", v)
			prev = q
		}
	})
}

func TestCriticalPericenter_InversionIdentity(t *testing.T) {
	cases := []struct {
		name      string
		in        Inputs
		threshold float64
		model     Model
	}{
		{"infinity galaxy", infinityGalaxy(), 1, Default},
		{"tiny threshold", infinityGalaxy(), 1e-40, Default},
		{"heavy equivalent mass", Inputs{Mass: 2e36, RelativeVelocity: 1e4, Coupling: 0.1, EquivalentMass: 50}, 3, Default},
		{"amplified", Inputs{Mass: 2e40, RelativeVelocity: 2e5, Coupling: 1e-2, EquivalentMass: 1e-8, DensityContrast: 4}, 0.5, Model{FoamExponent: 2.5}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rCrit, err := tc.model.CriticalPericenter(tc.in, tc.threshold)
			require.NoError(t, err)

			in := tc.in
			in.Pericenter = rCrit
			q, err := tc.model.Criterion(in)
			require.NoError(t, err)
			assert.InEpsilon(t, tc.threshold, q, 1e-12)
		})
	}
}

func TestRequiredCoupling_InversionIdentity(t *testing.T) {
	in := infinityGalaxy()
	in.DensityContrast = 0.5

	alpha, err := RequiredCoupling(in, DefaultThreshold)
	require.NoError(t, err)

	in.Coupling = alpha
	q, err := Criterion(in)
	require.NoError(t, err)
	assert.InEpsilon(t, DefaultThreshold, q, 1e-12)

	// Rounding may land either side of the boundary; a hair above must nucleate.
	in.Coupling = alpha * (1 + 1e-9)
	nucleates, err := Nucleates(in, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, nucleates)
}

func TestAmplification(t *testing.T) {
	m := Model{FoamExponent: 2}

	assert.Equal(t, 1.0, m.Amplification(0))
	assert.Equal(t, 1.0, Model{}.Amplification(0))
	assert.Equal(t, 0.0, m.Amplification(-3), "floored below -1")

	prev := m.Amplification(-1)
	for _, d := range []float64{-0.5, 0, 0.5, 1, 10} {
		got := m.Amplification(d)
		assert.Greater(t, got, prev, "contrast %g", d)
		prev = got
	}

	q0, err := m.Criterion(infinityGalaxy())
	require.NoError(t, err)
	amplified := infinityGalaxy()
	amplified.DensityContrast = 1
	q1, err := m.Criterion(amplified)
	require.NoError(t, err)
	assert.InEpsilon(t, 4*q0, q1, 1e-12)
}

func TestDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Inputs)
	}{
		{"zero pericenter", func(in *Inputs) { in.Pericenter = 0 }},
		{"negative pericenter", func(in *Inputs) { in.Pericenter = -1 }},
		{"zero velocity", func(in *Inputs) { in.RelativeVelocity = 0 }},
		{"negative velocity", func(in *Inputs) { in.RelativeVelocity = -3e5 }},
		{"zero equivalent mass", func(in *Inputs) { in.EquivalentMass = 0 }},
		{"NaN mass", func(in *Inputs) { in.Mass = math.NaN() }},
		{"infinite coupling", func(in *Inputs) { in.Coupling = math.Inf(1) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := infinityGalaxy()
			tc.mutate(&in)

			_, err := Criterion(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDomain))

			_, err = Nucleates(in, DefaultThreshold)
			assert.ErrorIs(t, err, ErrDomain)
		})
	}

	t.Run("critical pericenter ignores r_p but checks the rest", func(t *testing.T) {
		in := infinityGalaxy()
		in.Pericenter = 0
		_, err := CriticalPericenter(in, 1)
		assert.NoError(t, err)

		in.RelativeVelocity = 0
		_, err = CriticalPericenter(in, 1)
		assert.ErrorIs(t, err, ErrDomain)
	})

	t.Run("non-positive threshold for inversions", func(t *testing.T) {
		_, err := CriticalPericenter(infinityGalaxy(), 0)
		assert.ErrorIs(t, err, ErrDomain)
		_, err = RequiredCoupling(infinityGalaxy(), -1)
		assert.ErrorIs(t, err, ErrDomain)
	})

	t.Run("negative foam exponent", func(t *testing.T) {
		_, err := Model{FoamExponent: -1}.Criterion(infinityGalaxy())
		assert.ErrorIs(t, err, ErrDomain)
	})

	t.Run("required coupling needs positive mass", func(t *testing.T) {
		in := infinityGalaxy()
		in.Mass = 0
		_, err := RequiredCoupling(in, 1)
		assert.ErrorIs(t, err, ErrDomain)
	})
}
