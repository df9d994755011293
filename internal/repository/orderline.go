// Package repository maps the domain repositories onto the generic
// relation store.
package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/xenking/spinzone-api/internal/domain/orderline"
	"github.com/xenking/spinzone-api/internal/store"
)

const (
	orderLineRelation = "order_line"

	colOrderLineID = "order_line_id"
	colQuantity    = "quantity"
	colUnitPrice   = "unit_price"
	colDiscount    = "discount"
	colSubtotal    = "subtotal"
)

var _ orderline.Repository = (*OrderLineRepository)(nil)

// OrderLineRepository implements orderline.Repository over a store.Store.
type OrderLineRepository struct {
	s store.Store
}

// NewOrderLineRepository returns an OrderLineRepository that uses s.
func NewOrderLineRepository(s store.Store) *OrderLineRepository {
	return &OrderLineRepository{s: s}
}

func (r *OrderLineRepository) find(ctx context.Context, filters ...store.Filter) ([]orderline.Line, error) {
	rows, err := r.s.Find(ctx, orderLineRelation, filters...)
	if err != nil {
		return nil, err
	}
	lines := make([]orderline.Line, 0, len(rows))
	for _, row := range rows {
		l, err := mapLine(row)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	// Stores return rows in no guaranteed order.
	slices.SortFunc(lines, func(a, b orderline.Line) int { return cmp.Compare(a.ID, b.ID) })
	return lines, nil
}

// ListByOrder returns the lines of an order ordered by id.
func (r *OrderLineRepository) ListByOrder(ctx context.Context, orderID int64) ([]orderline.Line, error) {
	lines, err := r.find(ctx, store.Eq(colOrderID, orderID))
	if err != nil {
		return nil, fmt.Errorf("listing lines of order %d: %w", orderID, err)
	}
	return lines, nil
}

// ListByProduct returns the lines referencing a product ordered by id.
func (r *OrderLineRepository) ListByProduct(ctx context.Context, productID int64) ([]orderline.Line, error) {
	lines, err := r.find(ctx, store.Eq(colProductID, productID))
	if err != nil {
		return nil, fmt.Errorf("listing lines of product %d: %w", productID, err)
	}
	return lines, nil
}

// ListAll returns every line.
func (r *OrderLineRepository) ListAll(ctx context.Context) ([]orderline.Line, error) {
	lines, err := r.find(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing lines: %w", err)
	}
	return lines, nil
}

// GetByID returns a line or orderline.ErrLineNotFound.
func (r *OrderLineRepository) GetByID(ctx context.Context, id int64) (*orderline.Line, error) {
	lines, err := r.find(ctx, store.Eq(colOrderLineID, id))
	if err != nil {
		return nil, fmt.Errorf("getting line %d: %w", id, err)
	}
	if len(lines) == 0 {
		return nil, orderline.ErrLineNotFound
	}
	return &lines[0], nil
}

// Insert stores lines in a single call. A zero ID is left for the store to
// assign.
func (r *OrderLineRepository) Insert(ctx context.Context, lines ...orderline.Line) ([]orderline.Line, error) {
	rows := make([]store.Row, len(lines))
	for i, l := range lines {
		row := lineRow(l)
		row[colOrderID] = l.OrderID
		row[colProductID] = l.ProductID
		if l.ID != 0 {
			row[colOrderLineID] = l.ID
		}
		rows[i] = row
	}
	got, err := r.s.Insert(ctx, orderLineRelation, rows)
	if err != nil {
		return nil, fmt.Errorf("inserting lines: %w", err)
	}
	if len(got) != len(lines) {
		return nil, fmt.Errorf("inserting lines: store returned %d of %d rows", len(got), len(lines))
	}
	out := make([]orderline.Line, len(got))
	for i, row := range got {
		if out[i], err = mapLine(row); err != nil {
			return nil, fmt.Errorf("inserting lines: %w", err)
		}
	}
	return out, nil
}

// Update writes the mutable columns of the line matching l's natural key.
func (r *OrderLineRepository) Update(ctx context.Context, l orderline.Line) error {
	rows, err := r.s.Update(ctx, orderLineRelation,
		[]store.Filter{store.Eq(colOrderID, l.OrderID), store.Eq(colProductID, l.ProductID)},
		lineRow(l),
	)
	if err != nil {
		return fmt.Errorf("updating line (order %d, product %d): %w", l.OrderID, l.ProductID, err)
	}
	if len(rows) == 0 {
		return orderline.ErrLineNotFound
	}
	return nil
}

// Delete removes the line of a product from an order.
func (r *OrderLineRepository) Delete(ctx context.Context, orderID, productID int64) error {
	err := r.s.Delete(ctx, orderLineRelation, store.Eq(colOrderID, orderID), store.Eq(colProductID, productID))
	if err != nil {
		return fmt.Errorf("deleting line (order %d, product %d): %w", orderID, productID, err)
	}
	return nil
}

func lineRow(l orderline.Line) store.Row {
	return store.Row{
		colQuantity:  l.Quantity,
		colUnitPrice: l.UnitPrice,
		colDiscount:  l.Discount,
		colSubtotal:  l.Subtotal,
	}
}

func mapLine(row store.Row) (orderline.Line, error) {
	var (
		l   orderline.Line
		err error
	)
	fields := []struct {
		col string
		dst *int64
	}{
		{colOrderLineID, &l.ID},
		{colOrderID, &l.OrderID},
		{colProductID, &l.ProductID},
		{colQuantity, &l.Quantity},
		{colUnitPrice, &l.UnitPrice},
	}
	for _, f := range fields {
		if *f.dst, err = row.Int64(f.col); err != nil {
			return orderline.Line{}, err
		}
	}
	// Derived columns may be null on rows written outside the service.
	for _, f := range []struct {
		col string
		dst *int64
	}{
		{colDiscount, &l.Discount},
		{colSubtotal, &l.Subtotal},
	} {
		if row[f.col] == nil {
			continue
		}
		if *f.dst, err = row.Int64(f.col); err != nil {
			return orderline.Line{}, err
		}
	}
	return l, nil
}
