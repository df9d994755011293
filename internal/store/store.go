// Package store defines the generic relation-level data access contract the
// repositories are written against. Backends live in subpackages: postgres
// (pgx), postgrest (hosted PostgREST/Supabase over HTTP) and memory.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrTransient marks failures that are safe to retry: connection loss,
// throttling, upstream unavailability.
var ErrTransient = errors.New("transient store error")

// Row is a single record keyed by column name. Values are nil, bool, string,
// int64 (any integer width is accepted on input), float64 or decimal.Decimal.
type Row map[string]any

// Filter restricts an operation to rows whose Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Eq returns an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Store is the data-access interface over named relations.
type Store interface {
	// Find returns every row of relation matching all filters. No filters
	// returns the whole relation.
	Find(ctx context.Context, relation string, filters ...Filter) ([]Row, error)
	// Insert stores rows and returns them as persisted, including
	// store-assigned columns.
	Insert(ctx context.Context, relation string, rows []Row) ([]Row, error)
	// Update applies patch to every row matching filters and returns the
	// updated rows.
	Update(ctx context.Context, relation string, filters []Filter, patch Row) ([]Row, error)
	// Delete removes every row matching filters.
	Delete(ctx context.Context, relation string, filters ...Filter) error
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (e *transientError) Is(target error) bool { return target == ErrTransient }

// Transient marks err as retryable. It returns nil for a nil error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Int64 returns column as an int64, accepting any integer width, integral
// floats, decimals and numeric strings.
func (r Row) Int64(column string) (int64, error) {
	v, ok := r[column]
	if !ok || v == nil {
		return 0, errors.Errorf("column %q is missing", column)
	}
	n, err := ToInt64(v)
	if err != nil {
		return 0, errors.Wrapf(err, "column %q", column)
	}
	return n, nil
}

// String returns column as a string. A missing or null column is "".
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Decimal returns column as a decimal. A missing or null column is zero.
func (r Row) Decimal(column string) (decimal.Decimal, error) {
	switch v := r[column].(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "column %q", column)
		}
		return d, nil
	default:
		n, err := ToInt64(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "column %q", column)
		}
		return decimal.NewFromInt(n), nil
	}
}

// ToInt64 converts integer-like values to int64.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, errors.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case decimal.Decimal:
		if !n.Equal(n.Truncate(0)) {
			return 0, errors.Errorf("%s is not an integer", n)
		}
		return n.IntPart(), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse %q", n)
		}
		return i, nil
	default:
		return 0, errors.Errorf("unsupported integer type %T", v)
	}
}

// Equal compares two column values, treating integer widths and decimals
// holding the same number as equal. Strings only equal strings.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aStr || bStr {
		return a == b
	}
	_, aDec := a.(decimal.Decimal)
	_, bDec := b.(decimal.Decimal)
	if aDec || bDec {
		da, errA := toDecimal(a)
		db, errB := toDecimal(b)
		return errA == nil && errB == nil && da.Equal(db)
	}
	ia, errA := ToInt64(a)
	ib, errB := ToInt64(b)
	if errA == nil && errB == nil {
		return ia == ib
	}
	return a == b
}

func toDecimal(v any) (decimal.Decimal, error) {
	return Row{"v": v}.Decimal("v")
}

// Matches reports whether row satisfies every filter.
func Matches(row Row, filters []Filter) bool {
	for _, f := range filters {
		v, ok := row[f.Column]
		if !ok || !Equal(v, f.Value) {
			return false
		}
	}
	return true
}
