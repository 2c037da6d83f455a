package prior

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/names"
)

// Specification is an ordered, validated set of Parameters. Order matters:
// it fixes the column order of every vector and export derived from it.
// A Specification is immutable once constructed.
type Specification struct {
	params []Parameter
	names  []string
	index  map[string]int
}

// NewSpecification validates every parameter and rejects an empty set or
// duplicate names. Nothing is clamped or repaired.
func NewSpecification(params ...Parameter) (*Specification, error) {
	if len(params) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "prior specification needs at least one parameter")
	}
	spec := &Specification{
		params: make([]Parameter, len(params)),
		names:  make([]string, len(params)),
		index:  make(map[string]int, len(params)),
	}
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		spec.params[i] = p
		spec.names[i] = p.Name
		spec.index[p.Name] = i
	}
	if dups := names.Duplicates(spec.names); len(dups) > 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate parameter names: %s", strings.Join(dups, ", "))
	}
	return spec, nil
}

// Dim is the number of parameters.
func (s *Specification) Dim() int { return len(s.params) }

// Parameters returns a copy of the parameters in declaration order.
func (s *Specification) Parameters() []Parameter {
	return append([]Parameter(nil), s.params...)
}

// Names returns a copy of the parameter names in declaration order.
func (s *Specification) Names() []string {
	return append([]string(nil), s.names...)
}

// At returns the i-th parameter.
func (s *Specification) At(i int) Parameter { return s.params[i] }

// Lookup returns the parameter with the given name.
func (s *Specification) Lookup(name string) (Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return Parameter{}, false
	}
	return s.params[i], true
}

// Vector builds a vector over this specification's names. Values must lie
// within the declared bounds.
func (s *Specification) Vector(values []float64) (Vector, error) {
	if len(values) != len(s.params) {
		return Vector{}, dErrors.Newf(dErrors.CodeInvalidInput, "vector has %d values, specification has %d parameters", len(values), len(s.params))
	}
	for i, v := range values {
		if !s.params[i].Contains(v) {
			return Vector{}, dErrors.Newf(dErrors.CodeInvalidInput, "value %g outside bounds of %s", v, s.params[i])
		}
	}
	return Vector{names: s.names, values: append([]float64(nil), values...)}, nil
}

// document is the on-disk shape of a prior file.
type document struct {
	Parameters []Parameter `yaml:"parameters"`
}

// ParseYAML reads a prior file of the form
//
//	parameters:
//	  - {name: M, kind: log_uniform, lower: 1.989e36, upper: 1.989e41}
func ParseYAML(data []byte) (*Specification, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse prior file")
	}
	return NewSpecification(doc.Parameters...)
}

// LoadYAML reads a prior file from r.
func LoadYAML(r io.Reader) (*Specification, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read prior file: %w", err)
	}
	return ParseYAML(data)
}

// MarshalYAML writes the specification back in the ParseYAML shape.
func (s *Specification) MarshalYAML() (any, error) {
	return document{Parameters: s.params}, nil
}
