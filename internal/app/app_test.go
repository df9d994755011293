package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/domain/orderline"
	"github.com/xenking/spinzone-api/internal/domain/product"
)

func TestOpenBackend_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBackend(ctx, zap.NewNop(), nil, StoreConfig{Driver: DriverMemory})
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Pinger.Ping(ctx))

	repos := NewRepositories(b.Store, RetryConfig{MaxAttempts: 2})
	require.NoError(t, repos.Orders.Create(ctx, order.Order{ID: 1, PaymentMethodID: order.PaymentMethodTransfer}))
	require.NoError(t, repos.Products.Create(ctx, product.Product{ID: 5, Name: "Shuttle", Price: decimal.NewFromInt(2), Stock: 3}))

	r := orderline.NewReconciler(repos.Lines, repos.Orders, repos.Products, orderline.WithLocker(b.Locker))
	res, err := r.AddOrUpdate(ctx, orderline.Input{OrderID: 1, ProductID: 5, Quantity: 5, UnitPrice: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Line.ID)
	assert.Equal(t, int64(950), res.Line.Subtotal)
	assert.Equal(t, int64(0), res.Stock.Current)
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), zap.NewNop(), nil, StoreConfig{Driver: "sqlite"})
	assert.ErrorContains(t, err, "unknown store driver")
}
