// Package memory implements store.Store over in-process maps. It backs local
// development, the seed tooling and unit tests.
package memory

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/spinzone-api/internal/store"
)

var _ store.Store = (*Store)(nil)

type table struct {
	rows   []store.Row
	serial string
	next   int64
}

// Store is a concurrency-safe in-memory relation store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// Option configures a Store.
type Option func(*Store)

// WithSerial makes the store assign increasing int64 values to column of
// relation on insert when the row does not carry one.
func WithSerial(relation, column string) Option {
	return func(s *Store) {
		s.table(relation).serial = column
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{tables: make(map[string]*table)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// table returns the named table, creating it on first use. Callers hold mu.
func (s *Store) table(relation string) *table {
	t, ok := s.tables[relation]
	if !ok {
		t = &table{next: 1}
		s.tables[relation] = t
	}
	return t
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, relation string, filters ...store.Filter) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[relation]
	if !ok {
		return []store.Row{}, nil
	}
	out := make([]store.Row, 0, len(t.rows))
	for _, r := range t.rows {
		if store.Matches(r, filters) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, relation string, rows []store.Row) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(relation)
	out := make([]store.Row, 0, len(rows))
	for _, r := range rows {
		row := r.Clone()
		if t.serial != "" {
			if v, ok := row[t.serial]; ok && v != nil {
				id, err := store.ToInt64(v)
				if err != nil {
					return nil, errors.Wrapf(err, "insert %s", relation)
				}
				if id >= t.next {
					t.next = id + 1
				}
			} else {
				row[t.serial] = t.next
				t.next++
			}
		}
		t.rows = append(t.rows, row)
		out = append(out, row.Clone())
	}
	return out, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, relation string, filters []store.Filter, patch store.Row) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, errors.Errorf("update %s: refusing to update without filters", relation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[relation]
	if !ok {
		return []store.Row{}, nil
	}
	var out []store.Row
	for _, r := range t.rows {
		if !store.Matches(r, filters) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		out = append(out, r.Clone())
	}
	if out == nil {
		out = []store.Row{}
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(filters) == 0 {
		return errors.Errorf("delete %s: refusing to delete without filters", relation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[relation]
	if !ok {
		return nil
	}
	kept := t.rows[:0]
	for _, r := range t.rows {
		if !store.Matches(r, filters) {
			kept = append(kept, r)
		}
	}
	// Drop references held past the new length.
	for i := len(kept); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = kept
	return nil
}

// Ping always succeeds; it lets the memory store serve readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
