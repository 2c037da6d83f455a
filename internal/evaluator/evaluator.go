// Package evaluator maps parameter vectors through a model on a bounded
// worker pool and emits one row per sample in index order.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"luftscan/internal/prior"
	"luftscan/internal/results"
	dErrors "luftscan/pkg/domain-errors"
)

// Model computes the observables for one vector. Implementations must be
// safe for concurrent use. An error marks that sample failed; it never
// aborts the run.
type Model interface {
	Observables() []string
	Evaluate(prior.Vector) ([]float64, error)
}

// BatchObserver is notified after every completed batch.
type BatchObserver interface {
	ObserveBatch(size, failed int, elapsed time.Duration)
}

// Outcome summarizes a run.
type Outcome struct {
	Requested int
	Completed int
	Failed    int
	Batches   int
	Truncated bool
}

// Evaluator runs a model over a design. It holds no per-run state and
// may be reused.
type Evaluator struct {
	workers   int
	batchSize int
	logger    *slog.Logger
	tracer    trace.Tracer
	observer  BatchObserver
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithWorkers sets the pool size. The default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Evaluator) { e.workers = n }
}

// WithBatchSize sets how many samples are dispatched between cancellation
// checks. The default is 64 per worker.
func WithBatchSize(n int) Option {
	return func(e *Evaluator) { e.batchSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithTracer sets the tracer used for batch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Evaluator) { e.tracer = tracer }
}

// WithBatchObserver registers a batch observer, typically metrics.
func WithBatchObserver(o BatchObserver) Option {
	return func(e *Evaluator) { e.observer = o }
}

// New creates an Evaluator. Worker count and batch size below 1 are
// configuration errors.
func New(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
		tracer:  otel.Tracer("luftscan/evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "worker count must be at least 1, got %d", e.workers)
	}
	if e.batchSize == 0 {
		e.batchSize = 64 * e.workers
	}
	if e.batchSize < 1 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "batch size must be at least 1, got %d", e.batchSize)
	}
	return e, nil
}

// Workers is the pool size.
func (e *Evaluator) Workers() int { return e.workers }

// BatchSize is the number of samples per batch.
func (e *Evaluator) BatchSize() int { return e.batchSize }

// Run evaluates every point and writes the rows to sink in index order.
//
// Points are processed in batches. Within a batch up to Workers samples
// run concurrently and each writes only its own slot; the batch is then
// emitted in order. Cancellation is checked between batches, so a
// cancelled run finishes the batch in flight and reports Truncated with
// only the rows produced so far. Model failures and panics become failed
// rows. The returned error is non-nil only when the sink fails.
func (e *Evaluator) Run(ctx context.Context, model Model, points []prior.Vector, sink results.Sink) (Outcome, error) {
	out := Outcome{Requested: len(points)}
	nObs := len(model.Observables())
	slots := make([]results.Row, min(e.batchSize, len(points)))

	for start := 0; start < len(points); start += e.batchSize {
		if ctx.Err() != nil {
			out.Truncated = true
			e.logger.InfoContext(ctx, "scan cancelled between batches",
				"completed", out.Completed,
				"requested", out.Requested,
			)
			break
		}
		end := min(start+e.batchSize, len(points))
		batch := slots[:end-start]

		failed := e.runBatch(ctx, model, nObs, points[start:end], start, batch)
		for _, row := range batch {
			if err := sink.Write(row); err != nil {
				return out, fmt.Errorf("emit row %d: %w", row.Index, err)
			}
			out.Completed++
		}
		out.Failed += failed
		out.Batches++
	}
	return out, nil
}

func (e *Evaluator) runBatch(ctx context.Context, model Model, nObs int, points []prior.Vector, offset int, slots []results.Row) int {
	_, span := e.tracer.Start(ctx, "evaluator.batch",
		trace.WithAttributes(
			attribute.Int("offset", offset),
			attribute.Int("size", len(points)),
			attribute.Int("workers", e.workers),
		),
	)
	defer span.End()
	started := time.Now()

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range points {
		g.Go(func() error {
			slots[i] = evaluate(model, nObs, offset+i, points[i])
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	failed := 0
	for _, row := range slots {
		if !row.OK() {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	span.SetStatus(codes.Ok, "")
	if e.observer != nil {
		e.observer.ObserveBatch(len(points), failed, time.Since(started))
	}
	return failed
}

func evaluate(model Model, nObs, index int, v prior.Vector) (row results.Row) {
	row = results.Row{Index: index, Params: v.Values(), Status: results.StatusFailed}
	defer func() {
		if r := recover(); r != nil {
			row.Observables = nil
			row.Status = results.StatusFailed
			row.Reason = fmt.Sprintf("panic: %v", r)
		}
	}()

	values, err := model.Evaluate(v)
	if err != nil {
		row.Reason = err.Error()
		return row
	}
	if len(values) != nObs {
		row.Reason = fmt.Sprintf("model returned %d observables, expected %d", len(values), nObs)
		return row
	}
	row.Observables = values
	row.Status = results.StatusOK
	return row
}
