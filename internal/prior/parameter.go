// Package prior describes the sampled parameter space: one Parameter per
// dimension, each with a support and a distribution shape.
package prior

import (
	"fmt"
	"math"
	"strings"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/names"
)

// Kind is the distribution shape of a Parameter.
type Kind string

const (
	// Uniform spreads samples evenly between the bounds.
	Uniform Kind = "uniform"
	// LogUniform spreads the logarithm of samples evenly between the
	// logarithms of the bounds.
	LogUniform Kind = "log_uniform"
)

// ParseKind accepts the canonical names plus the common spellings
// "log-uniform" and "loguniform".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform":
		return Uniform, nil
	case "log_uniform", "log-uniform", "loguniform":
		return LogUniform, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown distribution kind %q", s)
	}
}

func (k Kind) String() string { return string(k) }

// UnmarshalText lets YAML and JSON documents use any accepted spelling.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Parameter is one dimension of the prior space.
//
// Invariants (checked by Validate):
//   - Name is a valid column name
//   - Lower < Upper, both finite
//   - LogUniform requires Lower > 0
type Parameter struct {
	Name  string  `json:"name" yaml:"name"`
	Kind  Kind    `json:"kind" yaml:"kind"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Validate enforces the Parameter invariants.
func (p Parameter) Validate() error {
	if !names.Valid(p.Name) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid parameter name %q", p.Name)
	}
	switch p.Kind {
	case Uniform, LogUniform:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "parameter %s: unknown distribution kind %q", p.Name, p.Kind)
	}
	if !finite(p.Lower) || !finite(p.Upper) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "parameter %s: bounds must be finite", p.Name)
	}
	if p.Lower >= p.Upper {
		return dErrors.Newf(dErrors.CodeInvalidInput, "parameter %s: lower bound %g must be below upper bound %g", p.Name, p.Lower, p.Upper)
	}
	if p.Kind == LogUniform && p.Lower <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "parameter %s: log-uniform bounds must be positive, got lower %g", p.Name, p.Lower)
	}
	return nil
}

// Quantile maps u in [0,1] to a value in [Lower, Upper] through the inverse
// CDF of the parameter's distribution. The result is clamped to the bounds
// so floating-point rounding can never leave the closed interval.
func (p Parameter) Quantile(u float64) float64 {
	var v float64
	switch p.Kind {
	case LogUniform:
		v = p.Lower * math.Pow(p.Upper/p.Lower, u)
	default:
		v = p.Lower + u*(p.Upper-p.Lower)
	}
	return math.Min(math.Max(v, p.Lower), p.Upper)
}

// CDF is the inverse of Quantile: the probability mass below x. Values
// outside the bounds map to 0 or 1.
func (p Parameter) CDF(x float64) float64 {
	if x <= p.Lower {
		return 0
	}
	if x >= p.Upper {
		return 1
	}
	switch p.Kind {
	case LogUniform:
		return math.Log(x/p.Lower) / math.Log(p.Upper/p.Lower)
	default:
		return (x - p.Lower) / (p.Upper - p.Lower)
	}
}

// Contains reports whether x lies in the closed interval [Lower, Upper].
func (p Parameter) Contains(x float64) bool {
	return x >= p.Lower && x <= p.Upper
}

func (p Parameter) String() string {
	return fmt.Sprintf("%s~%s[%g, %g]", p.Name, p.Kind, p.Lower, p.Upper)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
