package observables

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luftscan/internal/collapse"
	"luftscan/internal/prior"
	dErrors "luftscan/pkg/domain-errors"
)

var scenario = map[string]float64{
	InputMass:           1.989e39,
	InputPericenter:     3.086e19,
	InputVelocity:       3e5,
	InputCoupling:       1e-3,
	InputEquivalentMass: 1e-5,
	InputThreshold:      1,
}

func fixedExcept(skip ...string) map[string]float64 {
	out := make(map[string]float64, len(scenario))
	for k, v := range scenario {
		out[k] = v
	}
	for _, k := range skip {
		delete(out, k)
	}
	return out
}

func pericenterSpec(t *testing.T, lower, upper float64) *prior.Specification {
	t.Helper()
	spec, err := prior.NewSpecification(prior.Parameter{Name: InputPericenter, Kind: prior.Uniform, Lower: lower, Upper: upper})
	require.NoError(t, err)
	return spec
}

func TestBind_ConfigurationErrors(t *testing.T) {
	spec := pericenterSpec(t, 1e18, 1e20)

	tests := []struct {
		name    string
		spec    *prior.Specification
		list    []string
		fixed   map[string]float64
		wantErr string
	}{
		{"unknown observable", spec, []string{"entropy"}, fixedExcept(InputPericenter), "unknown observable"},
		{"duplicate observable", spec, []string{Q, Q}, fixedExcept(InputPericenter), "duplicate observables"},
		{"sampled and fixed", spec, nil, fixedExcept(), "both sampled and fixed"},
		{"missing required input", spec, nil, fixedExcept(InputPericenter, InputThreshold), "missing model inputs: Q_c"},
		{"unknown fixed input", spec, nil, map[string]float64{"temperature": 3, InputMass: 1, InputVelocity: 1, InputCoupling: 1, InputEquivalentMass: 1, InputThreshold: 1}, "not a model input"},
		{"non-finite fixed value", spec, nil, merge(fixedExcept(InputPericenter), map[string]float64{InputDensityContrast: math.NaN()}), "must be finite"},
		{"non-positive fixed foam exponent", spec, nil, merge(fixedExcept(InputPericenter), map[string]float64{InputFoamExponent: 0}), "strictly positive"},
		{"zero fixed threshold", spec, nil, merge(fixedExcept(InputPericenter), map[string]float64{InputThreshold: 0}), "Q_c must be strictly positive"},
		{"negative fixed threshold", spec, nil, merge(fixedExcept(InputPericenter), map[string]float64{InputThreshold: -1}), "strictly positive"},
		{"nil spec", nil, nil, fixedExcept(), "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(tt.spec, tt.list, tt.fixed)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("parameter that is not an input", func(t *testing.T) {
		other, err := prior.NewSpecification(prior.Parameter{Name: "z", Kind: prior.Uniform, Lower: 0, Upper: 1})
		require.NoError(t, err)
		_, err = Bind(other, nil, fixedExcept())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a model input")
	})

	t.Run("sampled foam exponent must be positive", func(t *testing.T) {
		beta, err := prior.NewSpecification(prior.Parameter{Name: InputFoamExponent, Kind: prior.Uniform, Lower: 0, Upper: 2})
		require.NoError(t, err)
		_, err = Bind(beta, nil, fixedExcept())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strictly positive")
	})

	t.Run("sampled threshold must be positive", func(t *testing.T) {
		qc, err := prior.NewSpecification(prior.Parameter{Name: InputThreshold, Kind: prior.Uniform, Lower: 0, Upper: 2})
		require.NoError(t, err)
		_, err = Bind(qc, nil, fixedExcept(InputThreshold))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Q_c must be strictly positive")
	})
}

func TestBinding_Evaluate(t *testing.T) {
	spec := pericenterSpec(t, 1e18, 1e20)
	b, err := Bind(spec, All(), fixedExcept(InputPericenter))
	require.NoError(t, err)
	assert.Equal(t, All(), b.Observables())

	v, err := spec.Vector([]float64{3.086e19})
	require.NoError(t, err)

	got, err := b.Evaluate(v)
	require.NoError(t, err)
	require.Len(t, got, 6)

	model, in, threshold := b.Resolve(v)
	assert.Equal(t, collapse.Model{FoamExponent: 1}, model)
	assert.Equal(t, 3.086e19, in.Pericenter)
	assert.Equal(t, 0.0, in.DensityContrast)
	assert.Equal(t, 1.0, threshold)

	q, err := collapse.Criterion(in)
	require.NoError(t, err)
	rCrit, err := collapse.CriticalPericenter(in, 1)
	require.NoError(t, err)
	alpha, err := collapse.RequiredCoupling(in, 1)
	require.NoError(t, err)

	assert.InEpsilon(t, 5.04e-34, got[0], 1e-3)
	assert.Equal(t, q, got[0])
	assert.Equal(t, 0.0, got[1])
	assert.Equal(t, rCrit, got[2])
	assert.Equal(t, q, got[3])
	assert.InDelta(t, math.Log10(q), got[4], 1e-12)
	assert.Equal(t, alpha, got[5])
}

func TestBinding_NucleatesIsBinary(t *testing.T) {
	spec := pericenterSpec(t, 1e-30, 1)
	fixed := fixedExcept(InputPericenter)
	fixed[InputThreshold] = 1e-20
	b, err := Bind(spec, []string{Nucleates, Margin}, fixed)
	require.NoError(t, err)

	v, err := spec.Vector([]float64{1e-20})
	require.NoError(t, err)
	got, err := b.Evaluate(v)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0])
	assert.Greater(t, got[1], 1.0)
}

func TestBinding_EvaluateErrors(t *testing.T) {
	t.Run("domain error from model", func(t *testing.T) {
		spec := pericenterSpec(t, 0, 1e20)
		b, err := Bind(spec, nil, fixedExcept(InputPericenter))
		require.NoError(t, err)

		v, err := spec.Vector([]float64{0})
		require.NoError(t, err)
		_, err = b.Evaluate(v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, collapse.ErrDomain))
		assert.Contains(t, err.Error(), "r_p")
	})

	t.Run("non-finite observable", func(t *testing.T) {
		spec, err := prior.NewSpecification(prior.Parameter{Name: InputCoupling, Kind: prior.Uniform, Lower: 0, Upper: 1})
		require.NoError(t, err)
		b, err := Bind(spec, []string{Log10Q}, fixedExcept(InputCoupling))
		require.NoError(t, err)

		v, err := spec.Vector([]float64{0})
		require.NoError(t, err)
		_, err = b.Evaluate(v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNonFinite))
		assert.Contains(t, err.Error(), Log10Q)
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(All()))
	assert.NoError(t, Validate(nil))
	assert.Error(t, Validate([]string{"Q", "q"}))
	assert.True(t, Known(RequiredCoupling))
	assert.False(t, Known("Q_c"))
}

func merge(a, b map[string]float64) map[string]float64 {
	for k, v := range b {
		a[k] = v
	}
	return a
}
