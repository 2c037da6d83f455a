package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/sentinel"
)

// Store keeps candidates keyed by name. Lookups of unknown names return
// sentinel.ErrNotFound.
type Store interface {
	Put(ctx context.Context, c Candidate) error
	Get(ctx context.Context, name string) (Candidate, error)
	List(ctx context.Context, f Filter) ([]Candidate, error)
	Delete(ctx context.Context, name string) error
}

// InMemoryStore is a Store guarded by a mutex.
type InMemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]Candidate
	now        func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{candidates: make(map[string]Candidate), now: time.Now}
}

// Put validates and inserts or replaces c, stamping UpdatedAt.
func (s *InMemoryStore) Put(_ context.Context, c Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UpdatedAt = s.now().UTC()
	s.candidates[c.Name] = c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, name string) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[name]
	if !ok {
		return Candidate{}, fmt.Errorf("candidate %s: %w", name, sentinel.ErrNotFound)
	}
	return c, nil
}

// List returns matching candidates ordered by name.
func (s *InMemoryStore) List(_ context.Context, f Filter) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		if f.match(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Candidate) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[name]; !ok {
		return fmt.Errorf("candidate %s: %w", name, sentinel.ErrNotFound)
	}
	delete(s.candidates, name)
	return nil
}

type document struct {
	Candidates []Candidate `json:"candidates"`
}

// Decode reads a JSON catalogue into a new store. Existing UpdatedAt
// stamps are kept.
func Decode(r io.Reader) (*InMemoryStore, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse catalogue")
	}
	s := NewInMemoryStore()
	for _, c := range doc.Candidates {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.candidates[c.Name]; dup {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "duplicate candidate %q", c.Name)
		}
		s.candidates[c.Name] = c
	}
	return s, nil
}

// Encode writes every candidate as an indented JSON catalogue.
func Encode(ctx context.Context, w io.Writer, s Store) error {
	all, err := s.List(ctx, Filter{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Candidates: all}); err != nil {
		return fmt.Errorf("encode catalogue: %w", err)
	}
	return nil
}

// Load reads a catalogue file.
func Load(path string) (*InMemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes a catalogue file, replacing it.
func Save(ctx context.Context, path string, s Store) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create catalogue: %w", err)
	}
	if err := Encode(ctx, f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
