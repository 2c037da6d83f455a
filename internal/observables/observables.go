// Package observables names the quantities a scan records per sample and
// binds sampled parameters and fixed values to collapse model inputs.
package observables

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"luftscan/internal/collapse"
	"luftscan/internal/prior"
	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/names"
)

// Observable names, as they appear in exported column headers.
const (
	Q                  = "Q"
	Nucleates          = "nucleates"
	CriticalPericenter = "r_crit"
	Margin             = "margin"
	Log10Q             = "log10_Q"
	RequiredCoupling   = "alpha_required"
)

var catalogue = []string{Q, Nucleates, CriticalPericenter, Margin, Log10Q, RequiredCoupling}

// Default is used when a scan names no observables.
var Default = []string{Q, Nucleates, CriticalPericenter}

// ErrNonFinite marks an observable that evaluated to NaN or ±Inf.
var ErrNonFinite = errors.New("non-finite observable")

// All returns every known observable name.
func All() []string { return slices.Clone(catalogue) }

// Known reports whether name is a known observable.
func Known(name string) bool { return slices.Contains(catalogue, name) }

// Validate checks a list of observable names: all known, none repeated.
func Validate(list []string) error {
	for _, n := range list {
		if !Known(n) {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown observable %q (known: %s)", n, strings.Join(catalogue, ", "))
		}
	}
	if dups := names.Duplicates(list); len(dups) > 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "duplicate observables: %s", strings.Join(dups, ", "))
	}
	return nil
}

// Model input names. A sampled parameter or a fixed value must use one of
// these names to reach the collapse model.
const (
	InputMass            = "M"
	InputPericenter      = "r_p"
	InputVelocity        = "v_rel"
	InputCoupling        = "alpha"
	InputEquivalentMass  = "m_eq"
	InputDensityContrast = "density_contrast"
	InputThreshold       = "Q_c"
	InputFoamExponent    = "foam_beta"
)

type input int

const (
	inMass input = iota
	inPericenter
	inVelocity
	inCoupling
	inEquivalentMass
	inDensityContrast
	inThreshold
	inFoamExponent
	numInputs
)

var inputNames = [numInputs]string{
	InputMass, InputPericenter, InputVelocity, InputCoupling,
	InputEquivalentMass, InputDensityContrast, InputThreshold, InputFoamExponent,
}

// defaults for inputs that may be omitted. Everything else is required.
var optional = map[input]float64{
	inDensityContrast: 0,
	inFoamExponent:    1,
}

// Inputs returns every model input name.
func Inputs() []string { return slices.Clone(inputNames[:]) }

func lookupInput(name string) (input, bool) {
	for i, n := range inputNames {
		if n == name {
			return input(i), true
		}
	}
	return 0, false
}

// source is either a parameter index or, when param < 0, a fixed value.
type source struct {
	param int
	value float64
}

// Binding maps one prior specification plus fixed values onto model
// inputs and computes a fixed list of observables. It is immutable and
// safe for concurrent use.
type Binding struct {
	observables []string
	sources     [numInputs]source
}

// Bind validates the combination of sampled parameters, fixed values and
// requested observables. Every failure is a configuration error.
func Bind(spec *prior.Specification, list []string, fixed map[string]float64) (*Binding, error) {
	if spec == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "prior specification is required")
	}
	if len(list) == 0 {
		list = Default
	}
	if err := Validate(list); err != nil {
		return nil, err
	}

	b := &Binding{observables: slices.Clone(list)}
	var bound [numInputs]bool

	for i, name := range spec.Names() {
		in, ok := lookupInput(name)
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "parameter %q is not a model input (inputs: %s)", name, strings.Join(inputNames[:], ", "))
		}
		if positiveOnly(in) && spec.At(i).Lower <= 0 {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "parameter %s must be strictly positive", name)
		}
		b.sources[in] = source{param: i}
		bound[in] = true
	}

	for _, name := range sortedKeys(fixed) {
		value := fixed[name]
		in, ok := lookupInput(name)
		if !ok {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "fixed value %q is not a model input", name)
		}
		if bound[in] {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "input %s is both sampled and fixed", name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "fixed value %s must be finite", name)
		}
		if positiveOnly(in) && value <= 0 {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "fixed value %s must be strictly positive, got %g", name, value)
		}
		b.sources[in] = source{param: -1, value: value}
		bound[in] = true
	}

	var missing []string
	for in := range numInputs {
		if bound[in] {
			continue
		}
		if def, ok := optional[in]; ok {
			b.sources[in] = source{param: -1, value: def}
			continue
		}
		missing = append(missing, inputNames[in])
	}
	if len(missing) > 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "missing model inputs: %s", strings.Join(missing, ", "))
	}
	return b, nil
}

// positiveOnly reports whether no row could be evaluated with a
// non-positive value of in.
func positiveOnly(in input) bool {
	return in == inFoamExponent || in == inThreshold
}

// Observables returns the observable names in column order.
func (b *Binding) Observables() []string { return slices.Clone(b.observables) }

// Resolve returns the model, inputs and threshold for one vector.
func (b *Binding) Resolve(v prior.Vector) (collapse.Model, collapse.Inputs, float64) {
	get := func(in input) float64 {
		s := b.sources[in]
		if s.param < 0 {
			return s.value
		}
		return v.At(s.param)
	}
	model := collapse.Model{FoamExponent: get(inFoamExponent)}
	inputs := collapse.Inputs{
		Mass:             get(inMass),
		Pericenter:       get(inPericenter),
		RelativeVelocity: get(inVelocity),
		Coupling:         get(inCoupling),
		EquivalentMass:   get(inEquivalentMass),
		DensityContrast:  get(inDensityContrast),
	}
	return model, inputs, get(inThreshold)
}

// Evaluate computes every bound observable for v, in column order. A
// collapse domain error or a non-finite value is returned as an error; the
// caller records it against the sample rather than aborting.
func (b *Binding) Evaluate(v prior.Vector) ([]float64, error) {
	model, in, threshold := b.Resolve(v)

	var (
		q    float64
		qErr error
		qSet bool
	)
	criterion := func() (float64, error) {
		if !qSet {
			q, qErr = model.Criterion(in)
			qSet = true
		}
		return q, qErr
	}

	out := make([]float64, len(b.observables))
	for i, name := range b.observables {
		var (
			value float64
			err   error
		)
		switch name {
		case Q:
			value, err = criterion()
		case Nucleates:
			if value, err = criterion(); err == nil {
				value = boolValue(value >= threshold)
			}
		case Margin:
			if value, err = criterion(); err == nil {
				value /= threshold
			}
		case Log10Q:
			if value, err = criterion(); err == nil {
				value = math.Log10(value)
			}
		case CriticalPericenter:
			value, err = model.CriticalPericenter(in, threshold)
		case RequiredCoupling:
			value, err = model.RequiredCoupling(in, threshold)
		}
		if err != nil {
			return nil, err
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("%w: %s = %g", ErrNonFinite, name, value)
		}
		out[i] = value
	}
	return out, nil
}

func boolValue(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
