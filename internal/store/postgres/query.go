package postgres

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/spinzone-api/internal/store"
)

// query is a parameterized SQL statement.
type query struct {
	sql  string
	args []any
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// where renders filters as a conjunction of equalities with placeholders
// numbered from offset+1.
func where(filters []store.Filter, offset int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	var b strings.Builder
	args := make([]any, 0, len(filters))
	b.WriteString(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(ident(f.Column))
		b.WriteString(" = $")
		b.WriteString(strconv.Itoa(offset + i + 1))
		args = append(args, f.Value)
	}
	return b.String(), args
}

func buildSelect(relation string, filters []store.Filter) query {
	w, args := where(filters, 0)
	return query{
		sql:  "SELECT * FROM " + ident(relation) + w,
		args: args,
	}
}

// buildInsert renders a multi-row INSERT over the union of row columns.
// Columns a row does not carry are sent as DEFAULT so serials and column
// defaults still apply.
func buildInsert(relation string, rows []store.Row) (query, error) {
	if len(rows) == 0 {
		return query{}, errors.New("no rows to insert")
	}
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		for _, c := range r.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				cols = append(cols, c)
			}
		}
	}
	if len(cols) == 0 {
		return query{}, errors.New("rows carry no columns")
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(relation))
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	var args []any
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			v, ok := r[c]
			if !ok {
				b.WriteString("DEFAULT")
				continue
			}
			args = append(args, v)
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args)))
		}
		b.WriteByte(')')
	}
	b.WriteString(" RETURNING *")
	return query{sql: b.String(), args: args}, nil
}

func buildUpdate(relation string, filters []store.Filter, patch store.Row) (query, error) {
	if len(filters) == 0 {
		return query{}, errors.New("refusing to update without filters")
	}
	if len(patch) == 0 {
		return query{}, errors.New("empty patch")
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(ident(relation))
	b.WriteString(" SET ")
	cols := patch.Columns()
	args := make([]any, 0, len(cols)+len(filters))
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
		b.WriteString(" = $")
		b.WriteString(strconv.Itoa(i + 1))
		args = append(args, patch[c])
	}
	w, wargs := where(filters, len(cols))
	b.WriteString(w)
	b.WriteString(" RETURNING *")
	return query{sql: b.String(), args: append(args, wargs...)}, nil
}

func buildDelete(relation string, filters []store.Filter) (query, error) {
	if len(filters) == 0 {
		return query{}, errors.New("refusing to delete without filters")
	}
	w, args := where(filters, 0)
	return query{sql: "DELETE FROM " + ident(relation) + w, args: args}, nil
}
