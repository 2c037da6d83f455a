package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"luftscan/internal/sensitivity"
	"luftscan/pkg/domain"
	"luftscan/pkg/platform/circuit"
	"luftscan/pkg/platform/sentinel"
)

// Backend is the cache a Guarded wraps.
type Backend interface {
	Get(ctx context.Context, id domain.ScanID, method sensitivity.Method) (*sensitivity.Matrix, error)
	Set(ctx context.Context, id domain.ScanID, method sensitivity.Method, m *sensitivity.Matrix) error
}

// Guarded skips its backend while the breaker is open, so an unreachable
// Redis costs one fast error per lookup instead of a dial timeout.
type Guarded struct {
	backend Backend
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(backend Backend, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{backend: backend, breaker: breaker, logger: logger}
}

func (g *Guarded) Get(ctx context.Context, id domain.ScanID, method sensitivity.Method) (*sensitivity.Matrix, error) {
	if !g.breaker.Allow() {
		return nil, g.rejected()
	}
	m, err := g.backend.Get(ctx, id, method)
	g.record(ctx, err)
	return m, err
}

func (g *Guarded) Set(ctx context.Context, id domain.ScanID, method sensitivity.Method, m *sensitivity.Matrix) error {
	if !g.breaker.Allow() {
		return g.rejected()
	}
	err := g.backend.Set(ctx, id, method, m)
	g.record(ctx, err)
	return err
}

func (g *Guarded) rejected() error {
	return fmt.Errorf("%s circuit open: %w", g.breaker.Name(), sentinel.ErrUnavailable)
}

// record counts only backend outages. A miss or a bad entry is a healthy
// round trip.
func (g *Guarded) record(ctx context.Context, err error) {
	if err != nil && errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "circuit opened", "circuit", g.breaker.Name(), "error", err)
		}
		return
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "circuit closed", "circuit", g.breaker.Name())
	}
}
