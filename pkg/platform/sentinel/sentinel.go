package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches and sinks return
// these (optionally wrapped) so the scan service can translate them into
// coded domain errors.
//
//   - ErrNotFound: scan record does not exist in the store
//   - ErrConflict: a record with the same ID already exists
//   - ErrInvalidState: the target is in the wrong state (e.g. appending to a finalized table)
//   - ErrUnavailable: backing service temporarily unavailable
//
// Bad scan configuration is not an infrastructure fact; use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
