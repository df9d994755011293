package postgrest

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/spinzone-api/internal/store"
)

// encodeRows writes rows as a JSON array. Decimals are written as JSON
// numbers so NUMERIC columns keep their precision.
func encodeRows(rows []store.Row) ([]byte, error) {
	var e jx.Encoder
	e.ArrStart()
	for _, r := range rows {
		if err := encodeRow(&e, r); err != nil {
			return nil, err
		}
	}
	e.ArrEnd()
	return e.Bytes(), nil
}

// encodePatch writes a single row as a JSON object.
func encodePatch(patch store.Row) ([]byte, error) {
	var e jx.Encoder
	if err := encodeRow(&e, patch); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func encodeRow(e *jx.Encoder, r store.Row) error {
	e.ObjStart()
	for _, c := range r.Columns() {
		e.FieldStart(c)
		if err := encodeValue(e, r[c]); err != nil {
			return errors.Wrapf(err, "column %q", c)
		}
	}
	e.ObjEnd()
	return nil
}

func encodeValue(e *jx.Encoder, v any) error {
	switch v := v.(type) {
	case nil:
		e.Null()
	case bool:
		e.Bool(v)
	case string:
		e.Str(v)
	case float64:
		e.Float64(v)
	case decimal.Decimal:
		e.Num(jx.Num(v.String()))
	default:
		n, err := store.ToInt64(v)
		if err != nil {
			return err
		}
		e.Int64(n)
	}
	return nil
}

// decodeRows parses a JSON array of objects. Integral numbers decode to
// int64, fractional ones to decimal.Decimal. Nested values are kept as raw
// JSON strings.
func decodeRows(data []byte) ([]store.Row, error) {
	d := jx.DecodeBytes(data)
	rows := []store.Row{}
	if err := d.Arr(func(d *jx.Decoder) error {
		row := store.Row{}
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			v, err := decodeValue(d)
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			row[string(key)] = v
			return nil
		}); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode rows")
	}
	return rows, nil
}

func decodeValue(d *jx.Decoder) (any, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Bool:
		return d.Bool()
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		if n.IsInt() {
			return n.Int64()
		}
		return decimal.NewFromString(n.String())
	default:
		raw, err := d.Raw()
		if err != nil {
			return nil, err
		}
		return raw.String(), nil
	}
}

// decodeError extracts the message of a PostgREST error body, falling back to
// the raw payload.
func decodeError(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "message" && d.Next() == jx.String {
			s, err := d.Str()
			msg = s
			return err
		}
		return d.Skip()
	})
	if err != nil || msg == "" {
		return string(data)
	}
	return msg
}

// filterValue renders a filter operand the way PostgREST expects it in the
// query string.
func filterValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case decimal.Decimal:
		return v.String()
	default:
		if n, err := store.ToInt64(v); err == nil {
			return strconv.FormatInt(n, 10)
		}
		return fmt.Sprint(v)
	}
}
