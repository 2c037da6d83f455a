// Package sampler turns a prior specification into a batch of parameter
// vectors that jointly cover the prior hyper-cube.
package sampler

import (
	"math"
	"math/rand/v2"
	"strings"

	"luftscan/internal/prior"
	dErrors "luftscan/pkg/domain-errors"
)

// Method selects how the unit hyper-cube is filled.
type Method string

const (
	// LatinHypercube places exactly one sample in each of the N strata of
	// every dimension.
	LatinHypercube Method = "lhs"
	// Random draws every coordinate independently and uniformly.
	Random Method = "random"
)

// ParseMethod accepts "lhs", "latin_hypercube" and "random". The empty
// string selects LatinHypercube.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lhs", "latin_hypercube", "latin-hypercube":
		return LatinHypercube, nil
	case "random", "uniform":
		return Random, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown sampling method %q", s)
	}
}

func (m Method) String() string { return string(m) }

// UnmarshalText lets scenario files use any accepted spelling.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Design is the outcome of one sampling run. Points are in sample-index
// order and are never mutated after construction.
type Design struct {
	Method Method
	// Unit holds the unit-cube coordinates, [sample][dimension]. Nil
	// unless WithDiagnostics is given.
	Unit [][]float64
	// Strata holds the stratum index of every coordinate. Nil for Random
	// and unless WithDiagnostics is given.
	Strata [][]int
	Points []prior.Vector
}

type options struct {
	diagnostics bool
}

type Option func(*options)

// WithDiagnostics keeps the unit-cube coordinates and strata on the
// Design. Without it only Points outlive Sample.
func WithDiagnostics() Option {
	return func(o *options) { o.diagnostics = true }
}

// Len is the number of samples.
func (d *Design) Len() int { return len(d.Points) }

// Sample draws n vectors from spec using the given method. The same
// (spec, n, seed, method) always yields the same design.
func Sample(spec *prior.Specification, n int, seed uint64, method Method, opts ...Option) (*Design, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if spec == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "prior specification is required")
	}
	if n < 1 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "sample count must be at least 1, got %d", n)
	}

	var (
		unit   [][]float64
		strata [][]int
	)
	switch method {
	case LatinHypercube, "":
		method = LatinHypercube
		unit, strata = latinHypercube(n, spec.Dim(), seed, o.diagnostics)
	case Random:
		unit = uniform(n, spec.Dim(), seed)
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown sampling method %q", method)
	}

	points := make([]prior.Vector, n)
	values := make([]float64, spec.Dim())
	for i := range n {
		for d := range spec.Dim() {
			values[d] = spec.At(d).Quantile(unit[i][d])
		}
		v, err := spec.Vector(values)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "sampled point outside prior bounds")
		}
		points[i] = v
	}
	d := &Design{Method: method, Points: points}
	if o.diagnostics {
		d.Unit, d.Strata = unit, strata
	}
	return d, nil
}

// latinHypercube gives every dimension its own PCG stream keyed by
// (seed, d+1) so the per-dimension permutations are independent. Strata
// are only recorded when keepStrata is set.
func latinHypercube(n, dim int, seed uint64, keepStrata bool) ([][]float64, [][]int) {
	unit := newMatrix[float64](n, dim)
	var strata [][]int
	if keepStrata {
		strata = newMatrix[int](n, dim)
	}
	width := 1 / float64(n)
	for d := range dim {
		rng := rand.New(rand.NewPCG(seed, uint64(d)+1))
		perm := rng.Perm(n)
		for i := range n {
			s := perm[i]
			lo, hi := StratumBounds(s, n)
			u := lo + rng.Float64()*width
			if u >= hi {
				u = math.Nextafter(hi, lo)
			}
			if u < lo {
				u = lo
			}
			unit[i][d] = u
			if keepStrata {
				strata[i][d] = s
			}
		}
	}
	return unit, strata
}

// uniform uses stream 0, which the hypercube never touches.
func uniform(n, dim int, seed uint64) [][]float64 {
	unit := newMatrix[float64](n, dim)
	rng := rand.New(rand.NewPCG(seed, 0))
	for i := range n {
		for d := range dim {
			unit[i][d] = rng.Float64()
		}
	}
	return unit
}

// StratumBounds returns the half-open interval [lo, hi) of stratum s out
// of n equal-width strata of [0,1).
func StratumBounds(s, n int) (lo, hi float64) {
	return float64(s) / float64(n), float64(s+1) / float64(n)
}

func newMatrix[T any](rows, cols int) [][]T {
	backing := make([]T, rows*cols)
	m := make([][]T, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return m
}
