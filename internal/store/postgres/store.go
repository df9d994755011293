// Package postgres implements store.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/spinzone-api/internal/store"
)

var _ store.Store = (*Store)(nil)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Store maps relations onto tables of the same name.
type Store struct {
	db Querier
}

// New returns a Store that runs statements on db.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, relation string, filters ...store.Filter) ([]store.Row, error) {
	q := buildSelect(relation, filters)
	rows, err := s.collect(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", relation, err)
	}
	return rows, nil
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, relation string, rows []store.Row) ([]store.Row, error) {
	q, err := buildInsert(relation, rows)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", relation, err)
	}
	out, err := s.collect(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", relation, err)
	}
	return out, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, relation string, filters []store.Filter, patch store.Row) ([]store.Row, error) {
	q, err := buildUpdate(relation, filters, patch)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", relation, err)
	}
	out, err := s.collect(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", relation, err)
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	q, err := buildDelete(relation, filters)
	if err != nil {
		return fmt.Errorf("delete %s: %w", relation, err)
	}
	if _, err := s.db.Exec(ctx, q.sql, q.args...); err != nil {
		return fmt.Errorf("delete %s: %w", relation, classify(err))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) collect(ctx context.Context, q query) ([]store.Row, error) {
	rows, err := s.db.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, classify(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]store.Row, len(maps))
	for i, m := range maps {
		out[i] = store.Row(m)
	}
	return out, nil
}

// classify marks connection-level failures, serialization failures and
// deadlocks as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return store.Transient(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001",
			pgErr.Code == "40P01",
			pgErr.Code == "57P01":
			return store.Transient(err)
		}
	}
	return err
}
