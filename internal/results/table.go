package results

import (
	"fmt"
	"slices"
	"sync"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/sentinel"
)

// State is the terminal condition of a table, read from its own contents.
type State string

const (
	StateOpen      State = "open"
	StateComplete  State = "complete"  // every requested row present and ok
	StatePartial   State = "partial"   // every requested row present, some failed
	StateTruncated State = "truncated" // cancelled before every row was produced
)

// Table is an ordered, append-only collection of rows. Rows arrive in
// index order: the next row's index must equal Len. After Finalize the
// table is immutable. Reads are safe while a single writer appends.
type Table struct {
	mu        sync.RWMutex
	schema    Schema
	requested int
	rows      []Row
	failed    int
	finalized bool
	truncated bool
}

// NewTable creates an empty table that expects requested rows.
func NewTable(schema Schema, requested int) (*Table, error) {
	if requested < 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "requested rows must not be negative, got %d", requested)
	}
	return &Table{
		schema:    schema,
		requested: requested,
		rows:      make([]Row, 0, min(requested, 1<<16)),
	}, nil
}

// Write appends a row. It implements Sink.
func (t *Table) Write(r Row) error {
	if err := t.schema.Check(r); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return fmt.Errorf("append row %d: table finalized: %w", r.Index, sentinel.ErrInvalidState)
	}
	if r.Index != len(t.rows) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "row %d appended out of order, expected %d", r.Index, len(t.rows))
	}
	if len(t.rows) >= t.requested {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "row %d exceeds the %d requested rows", r.Index, t.requested)
	}
	r.Params = slices.Clone(r.Params)
	r.Observables = slices.Clone(r.Observables)
	t.rows = append(t.rows, r)
	if !r.OK() {
		t.failed++
	}
	return nil
}

// Finalize freezes the table. truncated records that the scan was
// cancelled; a table that is short of its requested rows is always
// truncated.
func (t *Table) Finalize(truncated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalized = true
	t.truncated = truncated || len(t.rows) < t.requested
}

// Schema returns the column layout.
func (t *Table) Schema() Schema { return t.schema }

// Len is the number of rows present. It is less than Requested when the
// scan was truncated.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Requested is the number of samples the scan was configured for.
func (t *Table) Requested() int { return t.requested }

// Finalized reports whether Finalize has been called.
func (t *Table) Finalized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finalized
}

// Truncated reports whether the scan stopped before producing every row.
func (t *Table) Truncated() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.truncated
}

// Counts returns the number of ok and failed rows.
func (t *Table) Counts() (ok, failed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows) - t.failed, t.failed
}

// State classifies the table.
func (t *Table) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case !t.finalized:
		return StateOpen
	case t.truncated:
		return StateTruncated
	case t.failed > 0:
		return StatePartial
	default:
		return StateComplete
	}
}

// Row returns the i-th row.
func (t *Table) Row(i int) (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.rows) {
		return Row{}, false
	}
	return t.rows[i], true
}

// Rows returns a copy of the row slice. Row contents are shared and must
// not be modified.
func (t *Table) Rows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows)
}

// Each streams rows in index order into sink, stopping at the first error.
func (t *Table) Each(sink Sink) error {
	for _, r := range t.Rows() {
		if err := sink.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Column returns the named parameter or observable column over ok rows,
// in index order.
func (t *Table) Column(name string) ([]float64, error) {
	pi := t.schema.ParameterIndex(name)
	oi := t.schema.ObservableIndex(name)
	if pi < 0 && oi < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown column %q", name)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]float64, 0, len(t.rows)-t.failed)
	for _, r := range t.rows {
		if !r.OK() {
			continue
		}
		if pi >= 0 {
			out = append(out, r.Params[pi])
		} else {
			out = append(out, r.Observables[oi])
		}
	}
	return out, nil
}
