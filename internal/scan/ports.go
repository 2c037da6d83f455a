package scan

import (
	"context"

	"luftscan/internal/results"
	"luftscan/internal/sensitivity"
	"luftscan/pkg/domain"
)

// Store persists scan records and their rows.
// Lookups of unknown scans return sentinel.ErrNotFound.
type Store interface {
	// Create saves a new record. A duplicate ID returns sentinel.ErrConflict.
	Create(ctx context.Context, rec *Record) error

	// Update replaces the mutable fields of an existing record.
	Update(ctx context.Context, rec *Record) error

	// Find returns one record.
	Find(ctx context.Context, id domain.ScanID) (*Record, error)

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)

	// AppendRows stores rows for a scan. Rows arrive in index order.
	AppendRows(ctx context.Context, id domain.ScanID, rows []results.Row) error

	// StreamRows writes every stored row of a scan to sink in index order.
	StreamRows(ctx context.Context, id domain.ScanID, sink results.Sink) error
}

// SensitivityCache memoizes correlation matrices of finished scans.
// A miss returns sentinel.ErrNotFound.
type SensitivityCache interface {
	Get(ctx context.Context, id domain.ScanID, method sensitivity.Method) (*sensitivity.Matrix, error)
	Set(ctx context.Context, id domain.ScanID, method sensitivity.Method, m *sensitivity.Matrix) error
}

// RowPublisher streams rows to an external consumer as they are produced.
type RowPublisher interface {
	Publish(ctx context.Context, id domain.ScanID, schema results.Schema, rows []results.Row) error
}
