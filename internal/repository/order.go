package repository

import (
	"context"
	"fmt"

	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/store"
)

const (
	orderRelation = "order"

	colOrderID         = "order_id"
	colPaymentMethodID = "payment_method_id"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository reads order headers from a store.Store.
type OrderRepository struct {
	s store.Store
}

// NewOrderRepository returns an OrderRepository that uses s.
func NewOrderRepository(s store.Store) *OrderRepository {
	return &OrderRepository{s: s}
}

// GetByID returns an order header or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.s.Find(ctx, orderRelation, store.Eq(colOrderID, id))
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, order.ErrNotFound
	}
	row := rows[0]
	oid, err := row.Int64(colOrderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	// A missing payment method reads as zero, which never triggers stock
	// reservation.
	var pm int64
	if row[colPaymentMethodID] != nil {
		if pm, err = row.Int64(colPaymentMethodID); err != nil {
			return nil, fmt.Errorf("getting order %d: %w", id, err)
		}
	}
	return &order.Order{ID: oid, PaymentMethodID: pm}, nil
}

// Create stores order headers, used by the seed tooling.
func (r *OrderRepository) Create(ctx context.Context, orders ...order.Order) error {
	rows := make([]store.Row, len(orders))
	for i, o := range orders {
		rows[i] = store.Row{colOrderID: o.ID, colPaymentMethodID: o.PaymentMethodID}
	}
	if _, err := r.s.Insert(ctx, orderRelation, rows); err != nil {
		return fmt.Errorf("creating orders: %w", err)
	}
	return nil
}
