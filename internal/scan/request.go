// Package scan orchestrates a parameter scan: it validates a request,
// samples the prior, evaluates every sample, and fans rows out to the
// in-memory table, the record store and any extra sinks.
package scan

import (
	"maps"
	"slices"

	"luftscan/internal/observables"
	"luftscan/internal/prior"
	"luftscan/internal/sampler"
	dErrors "luftscan/pkg/domain-errors"
)

// Request is a fully explicit scan configuration. Nothing is read from
// process-wide state.
type Request struct {
	Name        string
	Priors      *prior.Specification
	Samples     int
	Seed        uint64
	Method      sampler.Method
	Observables []string
	// Fixed supplies model inputs that are not sampled.
	Fixed map[string]float64
	// Workers and BatchSize override the service defaults when positive.
	Workers   int
	BatchSize int
}

// Validate checks everything that can be checked without sampling. Every
// failure is a configuration error and happens before any sample is drawn.
func (r Request) Validate() error {
	if r.Priors == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "priors are required")
	}
	if r.Samples < 1 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "samples must be at least 1, got %d", r.Samples)
	}
	if r.Workers < 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "workers must be at least 1, got %d", r.Workers)
	}
	if r.BatchSize < 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "batch size must be at least 1, got %d", r.BatchSize)
	}
	if _, err := sampler.ParseMethod(string(r.Method)); err != nil {
		return err
	}
	_, err := observables.Bind(r.Priors, r.Observables, r.Fixed)
	return err
}

// ObservableNames returns the requested observables, or the default set.
func (r Request) ObservableNames() []string {
	if len(r.Observables) == 0 {
		return slices.Clone(observables.Default)
	}
	return slices.Clone(r.Observables)
}

func (r Request) clone() Request {
	r.Observables = slices.Clone(r.Observables)
	r.Fixed = maps.Clone(r.Fixed)
	return r
}
