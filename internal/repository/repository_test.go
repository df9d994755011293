package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/domain/orderline"
	"github.com/xenking/spinzone-api/internal/domain/product"
	"github.com/xenking/spinzone-api/internal/store"
	"github.com/xenking/spinzone-api/internal/store/memory"
)

func newStore() *memory.Store {
	return memory.New(memory.WithSerial(orderLineRelation, colOrderLineID))
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newStore())

	require.NoError(t, repo.Create(ctx, order.Order{ID: 1, PaymentMethodID: order.PaymentMethodTransfer}))

	o, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, o.IsTransfer())

	_, err = repo.GetByID(ctx, 2)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_NullPaymentMethod(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	_, err := s.Insert(ctx, orderRelation, []store.Row{{colOrderID: int64(5), colPaymentMethodID: nil}})
	require.NoError(t, err)

	o, err := NewOrderRepository(s).GetByID(ctx, 5)
	require.NoError(t, err)
	assert.False(t, o.IsTransfer())
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(newStore())

	require.NoError(t, repo.Create(ctx, product.Product{
		ID: 100, Name: "Racket", Price: decimal.RequireFromString("49.90"), Stock: 4,
	}))

	p, err := repo.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Racket", p.Name)
	assert.True(t, decimal.RequireFromString("49.90").Equal(p.Price))
	assert.Equal(t, int64(4), p.Stock)

	require.NoError(t, repo.SetStock(ctx, 100, 1))
	p, err = repo.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Stock)

	_, err = repo.GetByID(ctx, 5)
	assert.ErrorIs(t, err, product.ErrNotFound)
	assert.ErrorIs(t, repo.SetStock(ctx, 5, 0), product.ErrNotFound)
}

func TestOrderLineRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderLineRepository(newStore())

	inserted, err := repo.Insert(ctx,
		orderline.Line{OrderID: 1, ProductID: 100, Quantity: 3, UnitPrice: 1000, Subtotal: 3000},
		orderline.Line{OrderID: 1, ProductID: 200, Quantity: 2, UnitPrice: 500, Subtotal: 1000},
		orderline.Line{OrderID: 2, ProductID: 100, Quantity: 1, UnitPrice: 1000, Subtotal: 1000},
	)
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	assert.Equal(t, int64(1), inserted[0].ID)
	assert.Equal(t, int64(3), inserted[2].ID)

	lines, err := repo.ListByOrder(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(100), lines[0].ProductID)

	byProduct, err := repo.ListByProduct(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, byProduct, 2)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, repo.Update(ctx, orderline.Line{
		OrderID: 1, ProductID: 100, Quantity: 3, UnitPrice: 1000, Discount: 150, Subtotal: 2850,
	}))
	l, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(150), l.Discount)
	assert.Equal(t, int64(2850), l.Subtotal)

	err = repo.Update(ctx, orderline.Line{OrderID: 9, ProductID: 9, Quantity: 1})
	assert.ErrorIs(t, err, orderline.ErrLineNotFound)

	require.NoError(t, repo.Delete(ctx, 1, 200))
	lines, err = repo.ListByOrder(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = repo.GetByID(ctx, 2)
	assert.ErrorIs(t, err, orderline.ErrLineNotFound)
}

func TestMapLine_NullDerivedColumns(t *testing.T) {
	l, err := mapLine(store.Row{
		colOrderLineID: int32(4),
		colOrderID:     int64(1),
		colProductID:   int64(2),
		colQuantity:    int64(3),
		colUnitPrice:   float64(100),
		colDiscount:    nil,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), l.ID)
	assert.Equal(t, int64(100), l.UnitPrice)
	assert.Zero(t, l.Discount)
	assert.Zero(t, l.Subtotal)

	_, err = mapLine(store.Row{colOrderID: int64(1)})
	assert.Error(t, err)
}
