// Package results holds scan output: rows, the append-only table that
// collects them, and the sinks that export them row at a time.
package results

import (
	"slices"
	"strings"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/names"
)

// Status of one evaluated sample.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// ParseStatus reads the status column of an export.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOK, StatusFailed:
		return Status(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown row status %q", s)
	}
}

// Row is the outcome of one sample. Params follow the schema's parameter
// order and Observables its observable order. Observables is nil when the
// row failed.
type Row struct {
	Index       int
	Params      []float64
	Observables []float64
	Status      Status
	Reason      string
}

// OK reports whether the row evaluated successfully.
func (r Row) OK() bool { return r.Status == StatusOK }

// Fixed column names around the parameter and observable columns.
const (
	ColumnIndex  = "index"
	ColumnStatus = "status"
	ColumnReason = "reason"
)

// Schema fixes the column order of a table and every export of it:
// index, parameters, observables, status, reason.
type Schema struct {
	Parameters  []string
	Observables []string
}

// NewSchema validates that every column name is usable and unique.
func NewSchema(params, observables []string) (Schema, error) {
	s := Schema{Parameters: slices.Clone(params), Observables: slices.Clone(observables)}
	if len(params) == 0 {
		return Schema{}, dErrors.New(dErrors.CodeInvalidInput, "schema needs at least one parameter column")
	}
	cols := s.Columns()
	for _, c := range cols {
		if !names.Valid(c) {
			return Schema{}, dErrors.Newf(dErrors.CodeInvalidInput, "invalid column name %q", c)
		}
	}
	if dups := names.Duplicates(cols); len(dups) > 0 {
		return Schema{}, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate columns: %s", strings.Join(dups, ", "))
	}
	return s, nil
}

// Columns returns the header in export order.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s.Parameters)+len(s.Observables)+3)
	cols = append(cols, ColumnIndex)
	cols = append(cols, s.Parameters...)
	cols = append(cols, s.Observables...)
	return append(cols, ColumnStatus, ColumnReason)
}

// ParameterIndex returns the position of a parameter column.
func (s Schema) ParameterIndex(name string) int { return slices.Index(s.Parameters, name) }

// ObservableIndex returns the position of an observable column.
func (s Schema) ObservableIndex(name string) int { return slices.Index(s.Observables, name) }

// Check verifies that a row has the shape this schema describes.
func (s Schema) Check(r Row) error {
	if r.Index < 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "row index %d is negative", r.Index)
	}
	if len(r.Params) != len(s.Parameters) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "row %d has %d parameters, schema has %d", r.Index, len(r.Params), len(s.Parameters))
	}
	switch r.Status {
	case StatusOK:
		if len(r.Observables) != len(s.Observables) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "row %d has %d observables, schema has %d", r.Index, len(r.Observables), len(s.Observables))
		}
	case StatusFailed:
		if r.Observables != nil && len(r.Observables) != len(s.Observables) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "row %d has %d observables, schema has %d", r.Index, len(r.Observables), len(s.Observables))
		}
	default:
		return dErrors.Newf(dErrors.CodeInvariantViolation, "row %d has unknown status %q", r.Index, r.Status)
	}
	return nil
}
