package scan

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"luftscan/internal/observables"
	"luftscan/internal/prior"
	"luftscan/internal/sampler"
	dErrors "luftscan/pkg/domain-errors"
)

// Scenario is the file and wire form of a Request.
//
//	name: dwarf-flyby
//	samples: 1000
//	seed: 42
//	method: lhs
//	observables: [Q, nucleates, r_crit]
//	fixed: {alpha: 1.0e-3, m_eq: 1.0e-5}
//	parameters:
//	  - {name: M, kind: log_uniform, lower: 1.989e36, upper: 1.989e41}
//
// Q_c defaults to 1 when neither sampled nor fixed.
type Scenario struct {
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Samples     int                `json:"samples" yaml:"samples"`
	Seed        uint64             `json:"seed" yaml:"seed"`
	Method      sampler.Method     `json:"method,omitempty" yaml:"method,omitempty"`
	Workers     int                `json:"workers,omitempty" yaml:"workers,omitempty"`
	BatchSize   int                `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Observables []string           `json:"observables,omitempty" yaml:"observables,omitempty"`
	Fixed       map[string]float64 `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Parameters  []prior.Parameter  `json:"parameters" yaml:"parameters"`
}

// Request validates the scenario and converts it.
func (s Scenario) Request() (Request, error) {
	spec, err := prior.NewSpecification(s.Parameters...)
	if err != nil {
		return Request{}, err
	}
	method, err := sampler.ParseMethod(string(s.Method))
	if err != nil {
		return Request{}, err
	}
	fixed := make(map[string]float64, len(s.Fixed)+1)
	for k, v := range s.Fixed {
		fixed[k] = v
	}
	if _, sampled := spec.Lookup(observables.InputThreshold); !sampled {
		if _, ok := fixed[observables.InputThreshold]; !ok {
			fixed[observables.InputThreshold] = 1
		}
	}
	req := Request{
		Name:        s.Name,
		Priors:      spec,
		Samples:     s.Samples,
		Seed:        s.Seed,
		Method:      method,
		Observables: s.Observables,
		Fixed:       fixed,
		Workers:     s.Workers,
		BatchSize:   s.BatchSize,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// ParseScenario decodes a YAML scenario and converts it to a Request.
func ParseScenario(data []byte) (Request, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Request{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse scenario")
	}
	return s.Request()
}

// ReadScenario reads a YAML scenario from r.
func ReadScenario(r io.Reader) (Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Request{}, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return Request{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return ReadScenario(f)
}
