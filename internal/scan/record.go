package scan

import (
	"time"

	"luftscan/internal/evaluator"
	"luftscan/internal/prior"
	"luftscan/internal/results"
	"luftscan/internal/sampler"
	"luftscan/pkg/domain"
)

// Status is the lifecycle state of a scan record.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed" // every sample present and ok
	StatusPartial   Status = "partial"   // every sample present, some failed
	StatusTruncated Status = "truncated" // cancelled between batches
	StatusFailed    Status = "failed"    // infrastructure error, rows may be incomplete
)

// Terminal reports whether the scan has finished.
func (s Status) Terminal() bool { return s != StatusRunning }

// Record describes one scan run: its configuration, progress and outcome.
// The configuration fields are enough to reproduce the run.
type Record struct {
	ID          domain.ScanID      `json:"id"`
	Name        string             `json:"name,omitempty"`
	Status      Status             `json:"status"`
	Method      sampler.Method     `json:"method"`
	Seed        uint64             `json:"seed"`
	Requested   int                `json:"requested"`
	Completed   int                `json:"completed"`
	Failed      int                `json:"failed"`
	Workers     int                `json:"workers"`
	Parameters  []prior.Parameter  `json:"parameters"`
	Observables []string           `json:"observables"`
	Fixed       map[string]float64 `json:"fixed,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
}

// Schema is the column layout of the record's rows.
func (r *Record) Schema() results.Schema {
	names := make([]string, len(r.Parameters))
	for i, p := range r.Parameters {
		names[i] = p.Name
	}
	return results.Schema{Parameters: names, Observables: r.Observables}
}

// Specification rebuilds the prior the scan sampled from.
func (r *Record) Specification() (*prior.Specification, error) {
	return prior.NewSpecification(r.Parameters...)
}

// finish moves the record to its terminal status from the evaluator
// outcome. runErr is an infrastructure failure, if any.
func (r *Record) finish(out evaluator.Outcome, runErr error, at time.Time) {
	r.Completed = out.Completed
	r.Failed = out.Failed
	r.FinishedAt = &at
	switch {
	case runErr != nil:
		r.Status = StatusFailed
		r.Error = runErr.Error()
	case out.Truncated || out.Completed < out.Requested:
		r.Status = StatusTruncated
	case out.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusCompleted
	}
}
