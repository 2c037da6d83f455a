package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"luftscan/internal/evaluator"
	"luftscan/internal/observables"
	"luftscan/internal/results"
	"luftscan/internal/sampler"
	"luftscan/internal/scan/metrics"
	"luftscan/internal/sensitivity"
	"luftscan/pkg/domain"
	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/sentinel"
)

const (
	defaultPersistBatch = 500
	defaultListLimit    = 50
	maxListLimit        = 1000
)

// Service runs scans and serves their records, rows and statistics.
type Service struct {
	store        Store
	cache        SensitivityCache
	publisher    RowPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
	workers      int
	batchSize    int
	persistBatch int
	maxSamples   int
	now          func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithCache memoizes sensitivity matrices.
func WithCache(c SensitivityCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher streams every row to an external consumer as well.
func WithPublisher(p RowPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithWorkers sets the default pool size for requests that do not set one.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// WithBatchSize sets the default evaluator batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) { s.batchSize = n }
}

// WithMaxSamples rejects requests above n samples. Zero disables the cap.
func WithMaxSamples(n int) Option {
	return func(s *Service) { s.maxSamples = n }
}

// WithPersistBatch sets how many rows are buffered per store write.
func WithPersistBatch(n int) Option {
	return func(s *Service) { s.persistBatch = n }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	svc := &Service{
		store:        store,
		logger:       slog.Default(),
		tracer:       otel.Tracer("luftscan/scan"),
		persistBatch: defaultPersistBatch,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.persistBatch < 1 {
		return nil, fmt.Errorf("persist batch must be at least 1, got %d", svc.persistBatch)
	}
	return svc, nil
}

// Run executes req and returns the in-memory table alongside the stored
// record. A cancelled scan is not an error: the table holds the rows
// computed so far and the record is truncated. The error is non-nil for
// configuration errors, and for infrastructure failures, in which case
// the partial table and failed record are still returned.
func (s *Service) Run(ctx context.Context, req Request, sinks ...results.Sink) (*results.Table, *Record, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, nil, err
	}
	table, err := results.NewTable(p.schema, req.Samples)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.execute(ctx, p, append([]results.Sink{table}, sinks...))
	table.Finalize(rec == nil || rec.Status == StatusTruncated)
	return table, rec, err
}

// Stream executes req without keeping rows in memory. Rows reach the
// store, the publisher and sinks only.
func (s *Service) Stream(ctx context.Context, req Request, sinks ...results.Sink) (*Record, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, p, sinks)
}

type prepared struct {
	req     Request
	binding *observables.Binding
	design  *sampler.Design
	schema  results.Schema
	eval    *evaluator.Evaluator
}

func (s *Service) prepare(req Request) (*prepared, error) {
	if s.maxSamples > 0 && req.Samples > s.maxSamples {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "samples %d exceed the limit of %d", req.Samples, s.maxSamples)
	}
	opts := []evaluator.Option{evaluator.WithLogger(s.logger), evaluator.WithTracer(s.tracer)}
	if s.metrics != nil {
		opts = append(opts, evaluator.WithBatchObserver(s.metrics))
	}
	if w := firstPositive(req.Workers, s.workers); w > 0 {
		opts = append(opts, evaluator.WithWorkers(w))
	}
	if b := firstPositive(req.BatchSize, s.batchSize); b > 0 {
		opts = append(opts, evaluator.WithBatchSize(b))
	}
	return prepare(req, opts...)
}

// prepare does every fail-fast check, then samples.
func prepare(req Request, opts ...evaluator.Option) (*prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.clone()
	binding, err := observables.Bind(req.Priors, req.Observables, req.Fixed)
	if err != nil {
		return nil, err
	}
	eval, err := evaluator.New(opts...)
	if err != nil {
		return nil, err
	}
	schema, err := results.NewSchema(req.Priors.Names(), binding.Observables())
	if err != nil {
		return nil, err
	}
	design, err := sampler.Sample(req.Priors, req.Samples, req.Seed, req.Method)
	if err != nil {
		return nil, err
	}
	req.Method = design.Method
	return &prepared{req: req, binding: binding, design: design, schema: schema, eval: eval}, nil
}

func (s *Service) execute(ctx context.Context, p *prepared, sinks []results.Sink) (*Record, error) {
	started := s.now()
	rec := &Record{
		ID:          domain.NewScanID(),
		Name:        p.req.Name,
		Status:      StatusRunning,
		Method:      p.design.Method,
		Seed:        p.req.Seed,
		Requested:   p.req.Samples,
		Workers:     p.eval.Workers(),
		Parameters:  p.req.Priors.Parameters(),
		Observables: p.schema.Observables,
		Fixed:       p.req.Fixed,
		CreatedAt:   started,
	}

	ctx, span := s.tracer.Start(ctx, "scan.Run",
		trace.WithAttributes(
			attribute.String("scan_id", rec.ID.String()),
			attribute.Int("samples", rec.Requested),
			attribute.Int("dimensions", len(rec.Parameters)),
			attribute.Int("workers", rec.Workers),
			attribute.String("method", string(rec.Method)),
		),
	)
	defer span.End()

	// Persistence outlives cancellation: the in-flight batch still lands.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.Create(persistCtx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create scan record: %w", err)
	}
	s.metrics.ScanStarted()
	s.logger.InfoContext(ctx, "scan started",
		"scan_id", rec.ID.String(),
		"samples", rec.Requested,
		"parameters", len(rec.Parameters),
		"workers", rec.Workers,
		"method", string(rec.Method),
	)

	all := make([]results.Sink, 0, len(sinks)+2)
	all = append(all, sinks...)
	all = append(all, newBatchSink(persistCtx, s.persistBatch, func(ctx context.Context, rows []results.Row) error {
		return s.store.AppendRows(ctx, rec.ID, rows)
	}))
	if s.publisher != nil {
		all = append(all, newBatchSink(persistCtx, s.persistBatch, func(ctx context.Context, rows []results.Row) error {
			return s.publisher.Publish(ctx, rec.ID, p.schema, rows)
		}))
	}
	sink := results.Tee(all...)

	out, runErr := p.eval.Run(ctx, p.binding, p.design.Points, sink)
	if err := results.Flush(sink); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("flush rows: %w", err))
	}
	rec.finish(out, runErr, s.now())

	elapsed := s.now().Sub(started)
	s.metrics.ScanFinished(string(rec.Status), elapsed)
	span.SetAttributes(
		attribute.Int("completed", rec.Completed),
		attribute.Int("failed", rec.Failed),
		attribute.String("status", string(rec.Status)),
	)

	if err := s.store.Update(persistCtx, rec); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("update scan record: %w", err))
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		s.logger.ErrorContext(ctx, "scan failed",
			"scan_id", rec.ID.String(),
			"completed", rec.Completed,
			"error", runErr,
		)
		return rec, dErrors.Wrap(runErr, dErrors.CodeUnavailable, "scan aborted")
	}

	span.SetStatus(codes.Ok, "")
	s.logger.InfoContext(ctx, "scan finished",
		"scan_id", rec.ID.String(),
		"status", string(rec.Status),
		"completed", rec.Completed,
		"failed", rec.Failed,
		"duration_ms", elapsed.Milliseconds(),
	)
	return rec, nil
}

// Get returns one scan record.
func (s *Service) Get(ctx context.Context, id domain.ScanID) (*Record, error) {
	rec, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, translate(err, "scan")
	}
	return rec, nil
}

// List returns recent scan records, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Record, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	recs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, translate(err, "scans")
	}
	return recs, nil
}

// Export streams the stored rows of a scan to sink in index order and
// flushes it.
func (s *Service) Export(ctx context.Context, id domain.ScanID, sink results.Sink) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.StreamRows(ctx, id, sink); err != nil {
		return translate(err, "scan rows")
	}
	return results.Flush(sink)
}

// Table rebuilds the finalized table of a stored scan.
func (s *Service) Table(ctx context.Context, id domain.ScanID) (*results.Table, *Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !rec.Status.Terminal() {
		return nil, nil, dErrors.Newf(dErrors.CodeConflict, "scan %s is still running", id)
	}
	table, err := results.NewTable(rec.Schema(), rec.Requested)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.StreamRows(ctx, id, table); err != nil {
		return nil, nil, translate(err, "scan rows")
	}
	table.Finalize(rec.Status == StatusTruncated)
	return table, rec, nil
}

// Sensitivity computes the correlation matrix of a finished scan, using
// the cache when one is configured. Cache failures degrade to recomputing.
func (s *Service) Sensitivity(ctx context.Context, id domain.ScanID, method sensitivity.Method) (*sensitivity.Matrix, error) {
	method, err := sensitivity.ParseMethod(string(method))
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		m, err := s.cache.Get(ctx, id, method)
		switch {
		case err == nil:
			s.metrics.CacheLookup("hit")
			return m, nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.CacheLookup("miss")
		default:
			s.metrics.CacheLookup("error")
			s.logger.WarnContext(ctx, "sensitivity cache read failed", "scan_id", id.String(), "error", err)
		}
	}

	table, _, err := s.Table(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := sensitivity.Analyze(table, method)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, id, method, m); err != nil {
			s.logger.WarnContext(ctx, "sensitivity cache write failed", "scan_id", id.String(), "error", err)
		}
	}
	return m, nil
}

// Summary reports counts and observable statistics of a finished scan.
func (s *Service) Summary(ctx context.Context, id domain.ScanID) (sensitivity.Summary, error) {
	table, _, err := s.Table(ctx, id)
	if err != nil {
		return sensitivity.Summary{}, err
	}
	return sensitivity.Summarize(table)
}

// translate maps store sentinels to coded errors.
func translate(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, what+" unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
