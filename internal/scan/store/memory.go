// Package store persists scan records and rows: in memory for tests and
// single-process use, PostgreSQL for the server, SQLite for local CLI runs.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"luftscan/internal/results"
	"luftscan/internal/scan"
	"luftscan/pkg/domain"
	"luftscan/pkg/platform/sentinel"
)

type memoryEntry struct {
	rec      *scan.Record
	rows     []results.Row
	appended int
}

// InMemoryStore keeps everything in process memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	scans       map[domain.ScanID]*memoryEntry
	discardRows bool
}

type MemoryOption func(*InMemoryStore)

// RecordsOnly keeps scan records but drops rows after checking their
// order, so a streamed scan holds no rows in memory. StreamRows then
// fails with sentinel.ErrInvalidState.
func RecordsOnly() MemoryOption {
	return func(s *InMemoryStore) { s.discardRows = true }
}

func NewMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{scans: make(map[domain.ScanID]*memoryEntry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Create(_ context.Context, rec *scan.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scans[rec.ID]; exists {
		return fmt.Errorf("create scan %s: %w", rec.ID, sentinel.ErrConflict)
	}
	s.scans[rec.ID] = &memoryEntry{rec: cloneRecord(rec)}
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *scan.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.scans[rec.ID]
	if !ok {
		return fmt.Errorf("update scan %s: %w", rec.ID, sentinel.ErrNotFound)
	}
	e.rec = cloneRecord(rec)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.ScanID) (*scan.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.scans[id]
	if !ok {
		return nil, fmt.Errorf("find scan %s: %w", id, sentinel.ErrNotFound)
	}
	return cloneRecord(e.rec), nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]*scan.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*scan.Record, 0, len(s.scans))
	for _, e := range s.scans {
		out = append(out, cloneRecord(e.rec))
	}
	slices.SortFunc(out, func(a, b *scan.Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AppendRows(_ context.Context, id domain.ScanID, rows []results.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.scans[id]
	if !ok {
		return fmt.Errorf("append rows to scan %s: %w", id, sentinel.ErrNotFound)
	}
	for _, r := range rows {
		if r.Index != e.appended {
			return fmt.Errorf("append row %d to scan %s, expected %d: %w", r.Index, id, e.appended, sentinel.ErrInvalidState)
		}
		e.appended++
		if s.discardRows {
			continue
		}
		r.Params = slices.Clone(r.Params)
		r.Observables = slices.Clone(r.Observables)
		e.rows = append(e.rows, r)
	}
	return nil
}

func (s *InMemoryStore) StreamRows(ctx context.Context, id domain.ScanID, sink results.Sink) error {
	if s.discardRows {
		return fmt.Errorf("stream rows of scan %s: rows are not retained: %w", id, sentinel.ErrInvalidState)
	}
	s.mu.RLock()
	e, ok := s.scans[id]
	var rows []results.Row
	if ok {
		rows = slices.Clone(e.rows)
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("stream rows of scan %s: %w", id, sentinel.ErrNotFound)
	}
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func cloneRecord(rec *scan.Record) *scan.Record {
	c := *rec
	c.Parameters = slices.Clone(rec.Parameters)
	c.Observables = slices.Clone(rec.Observables)
	c.Fixed = maps.Clone(rec.Fixed)
	if rec.FinishedAt != nil {
		t := *rec.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func compareIDs(a, b domain.ScanID) int {
	return slices.Compare(a[:], b[:])
}
