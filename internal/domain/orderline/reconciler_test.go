package orderline

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/domain/product"
)

const (
	transferOrder = int64(1)
	cardOrder     = int64(2)
)

type fixture struct {
	lines    *fakeLines
	orders   fakeOrders
	products *fakeProducts
	r        *Reconciler
}

func newFixture(t *testing.T, lines ...Line) *fixture {
	t.Helper()
	f := &fixture{
		lines: newFakeLines(lines...),
		orders: fakeOrders{
			transferOrder: {ID: transferOrder, PaymentMethodID: order.PaymentMethodTransfer},
			cardOrder:     {ID: cardOrder, PaymentMethodID: 3},
			10:            {ID: 10, PaymentMethodID: 2},
		},
		products: newFakeProducts(
			product.Product{ID: 7, Name: "Grip tape", Stock: 50},
			product.Product{ID: 100, Name: "Racket", Price: decimal.RequireFromString("10.00"), Stock: 10},
			product.Product{ID: 200, Name: "Balls", Price: decimal.RequireFromString("5.00"), Stock: 10},
			product.Product{ID: 300, Name: "Net", Stock: 2},
		),
	}
	f.r = NewReconciler(f.lines, f.orders, f.products)
	return f
}

func (f *fixture) requireConsistent(t *testing.T, orderID int64) {
	t.Helper()
	lines, err := f.lines.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	applies := discount.DefaultPolicy.AppliesForOrder(items(lines))
	for _, l := range lines {
		subtotal, d := discount.DefaultPolicy.ComputeLine(l.Quantity, l.UnitPrice, applies)
		require.Equal(t, subtotal, l.Subtotal, "product %d subtotal", l.ProductID)
		require.Equal(t, d, l.Discount, "product %d discount", l.ProductID)
		require.Equal(t, l.Original(), l.Subtotal+l.Discount)
	}
}

func TestReconciler_EndToEndTransferOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.r.AddOrUpdate(ctx, Input{OrderID: transferOrder, ProductID: 100, Quantity: 3, UnitPrice: 1000})
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Positive(t, res.Line.ID)
	assert.Equal(t, int64(3000), res.Line.Subtotal)
	assert.Equal(t, int64(0), res.Line.Discount)
	assert.True(t, res.Stock.Applied)
	assert.Equal(t, int64(10), res.Stock.Previous)
	assert.Equal(t, int64(7), res.Stock.Current)

	res, err = f.r.AddOrUpdate(ctx, Input{OrderID: transferOrder, ProductID: 200, Quantity: 2, UnitPrice: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(950), res.Line.Subtotal)
	assert.Equal(t, int64(50), res.Line.Discount)

	first, ok := f.lines.get(transferOrder, 100)
	require.True(t, ok)
	assert.Equal(t, int64(2850), first.Subtotal)
	assert.Equal(t, int64(150), first.Discount)

	assert.Equal(t, int64(7), f.products.stock(100))
	assert.Equal(t, int64(8), f.products.stock(200))
	f.requireConsistent(t, transferOrder)
}

func TestReconciler_BoundaryFlipPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 100, Quantity: 4, UnitPrice: 1000})
	require.NoError(t, err)
	l, _ := f.lines.get(cardOrder, 100)
	assert.Zero(t, l.Discount)

	_, err = f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 200, Quantity: 1, UnitPrice: 500})
	require.NoError(t, err)

	l, _ = f.lines.get(cardOrder, 100)
	assert.Equal(t, int64(200), l.Discount)
	l, _ = f.lines.get(cardOrder, 200)
	assert.Equal(t, int64(25), l.Discount)
	f.requireConsistent(t, cardOrder)
}

func TestReconciler_UpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.r.AddOrUpdate(ctx, Input{OrderID: 10, ProductID: 7, Quantity: 2, UnitPrice: 300})
	require.NoError(t, err)
	res, err := f.r.AddOrUpdate(ctx, Input{OrderID: 10, ProductID: 7, Quantity: 6, UnitPrice: 300})
	require.NoError(t, err)
	assert.True(t, res.Updated)

	lines, err := f.lines.ListByOrder(ctx, 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(6), lines[0].Quantity)
	// The replaced quantity, not the sum, decides the flag: 6 > 4.
	assert.Equal(t, int64(90), lines[0].Discount)
}

func TestReconciler_UpsertUsesPostMutationTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Line{OrderID: cardOrder, ProductID: 100, Quantity: 4, UnitPrice: 100, Subtotal: 400})

	// Shrinking 4 -> 1 must not count the old quantity.
	_, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 100, Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)
	_, err = f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 200, Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)

	l, _ := f.lines.get(cardOrder, 200)
	assert.Zero(t, l.Discount)
}

func TestReconciler_StockClampsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.r.AddOrUpdate(ctx, Input{OrderID: transferOrder, ProductID: 300, Quantity: 5, UnitPrice: 10})
	require.NoError(t, err)
	assert.True(t, res.Stock.Applied)
	assert.Equal(t, int64(2), res.Stock.Previous)
	assert.Equal(t, int64(0), res.Stock.Current)
	assert.Equal(t, int64(0), f.products.stock(300))
}

func TestReconciler_NonTransferLeavesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 100, Quantity: 3, UnitPrice: 1000})
	require.NoError(t, err)
	assert.False(t, res.Stock.Attempted)
	assert.Equal(t, int64(10), f.products.stock(100))
}

func TestReconciler_WithoutStockReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.r = NewReconciler(f.lines, f.orders, f.products, WithoutStockReservation())

	res, err := f.r.AddOrUpdate(ctx, Input{OrderID: transferOrder, ProductID: 100, Quantity: 3, UnitPrice: 1000})
	require.NoError(t, err)
	assert.False(t, res.Stock.Attempted)
	assert.Equal(t, int64(100), res.Stock.ProductID)

	bulk, err := f.r.AddBulk(ctx, transferOrder, []BulkItem{{ProductID: 200, Quantity: 2, UnitPrice: 500}})
	require.NoError(t, err)
	assert.Empty(t, bulk.Stock)

	assert.Equal(t, int64(10), f.products.stock(100))
	assert.Equal(t, int64(10), f.products.stock(200))
	f.requireConsistent(t, transferOrder)

	adj := f.r.AdjustStockIfTransfer(ctx, transferOrder, 100, 4)
	assert.True(t, adj.Applied)
	assert.Equal(t, int64(6), f.products.stock(100))
}

func TestReconciler_StockFailureKeepsLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.products.stockErr = errors.New("write timeout")

	res, err := f.r.AddOrUpdate(ctx, Input{OrderID: transferOrder, ProductID: 100, Quantity: 1, UnitPrice: 1000})
	require.NoError(t, err)
	assert.True(t, res.Stock.Attempted)
	assert.False(t, res.Stock.Applied)
	require.Error(t, res.Stock.Err)

	_, ok := f.lines.get(transferOrder, 100)
	assert.True(t, ok)
}

func TestReconciler_AddOrUpdateErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr any
	}{
		{name: "zero quantity", in: Input{OrderID: 1, ProductID: 100, Quantity: 0, UnitPrice: 1}, wantErr: &ValidationError{}},
		{name: "negative price", in: Input{OrderID: 1, ProductID: 100, Quantity: 1, UnitPrice: -1}, wantErr: &ValidationError{}},
		{name: "quantity over limit", in: Input{OrderID: 1, ProductID: 100, Quantity: 1 << 32, UnitPrice: 1 << 32}, wantErr: &ValidationError{}},
		{name: "price over limit", in: Input{OrderID: 1, ProductID: 100, Quantity: 1, UnitPrice: discount.MaxUnitPrice + 1}, wantErr: &ValidationError{}},
		{name: "missing order", in: Input{OrderID: 99, ProductID: 100, Quantity: 1, UnitPrice: 1}, wantErr: &NotFoundError{}},
		{name: "missing product", in: Input{OrderID: 1, ProductID: 999, Quantity: 1, UnitPrice: 1}, wantErr: &NotFoundError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.r.AddOrUpdate(context.Background(), tt.in)
			require.Error(t, err)
			switch tt.wantErr.(type) {
			case *ValidationError:
				var target *ValidationError
				assert.ErrorAs(t, err, &target)
			case *NotFoundError:
				var target *NotFoundError
				assert.ErrorAs(t, err, &target)
			}
			assert.Zero(t, f.lines.count())
		})
	}
}

func TestReconciler_LoadFailureIsPersistenceError(t *testing.T) {
	f := newFixture(t)
	f.lines.listErr = errors.New("store down")

	_, err := f.r.AddOrUpdate(context.Background(), Input{OrderID: 1, ProductID: 100, Quantity: 1, UnitPrice: 1})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "store down")
}

func TestReconciler_CompensatesFailedInsertPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Line{OrderID: cardOrder, ProductID: 100, Quantity: 4, UnitPrice: 100, Subtotal: 400})
	f.lines.failUpdateAt = 1

	_, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 200, Quantity: 1, UnitPrice: 100})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)

	_, ok := f.lines.get(cardOrder, 200)
	assert.False(t, ok, "inserted line must be removed")
	l, _ := f.lines.get(cardOrder, 100)
	assert.Equal(t, int64(400), l.Subtotal)
	assert.Zero(t, l.Discount)
}

func TestReconciler_CompensatesFailedSiblingUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		Line{OrderID: transferOrder, ProductID: 100, Quantity: 2, UnitPrice: 100, Subtotal: 200},
		Line{OrderID: transferOrder, ProductID: 200, Quantity: 2, UnitPrice: 100, Subtotal: 200},
	)
	f.lines.failUpdateAt = 2

	_, err := f.r.AddOrUpdate(ctx, Input{OrderID: transferOrder, ProductID: 100, Quantity: 3, UnitPrice: 100})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)

	l, _ := f.lines.get(transferOrder, 100)
	assert.Equal(t, int64(2), l.Quantity)
	assert.Equal(t, int64(200), l.Subtotal)
	assert.Zero(t, l.Discount)
	// Stock is only reserved for committed lines.
	assert.Equal(t, int64(10), f.products.stock(100))
}

func TestReconciler_AddBulkRepricesSiblings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Line{OrderID: transferOrder, ProductID: 100, Quantity: 1, UnitPrice: 1000, Subtotal: 1000})

	res, err := f.r.AddBulk(ctx, transferOrder, []BulkItem{
		{ProductID: 200, Quantity: 2, UnitPrice: 500},
		{ProductID: 300, Quantity: 1, UnitPrice: 200},
		{ProductID: 200, Quantity: 3, UnitPrice: 500},
	})
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Equal(t, int64(5), res.TotalQuantity)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, int64(200), res.Lines[0].ProductID)
	assert.Equal(t, int64(3), res.Lines[0].Quantity, "last occurrence wins")
	assert.Equal(t, int64(300), res.Lines[1].ProductID)

	existing, _ := f.lines.get(transferOrder, 100)
	assert.Equal(t, int64(50), existing.Discount, "pre-existing sibling is repriced")
	f.requireConsistent(t, transferOrder)

	require.Len(t, res.Stock, 2)
	assert.Equal(t, int64(7), f.products.stock(200))
	assert.Equal(t, int64(1), f.products.stock(300))
	assert.Equal(t, int64(10), f.products.stock(100), "untouched sibling keeps its stock")
}

func TestReconciler_AddBulkUpsertsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Line{OrderID: cardOrder, ProductID: 100, Quantity: 1, UnitPrice: 1000, Subtotal: 1000})

	res, err := f.r.AddBulk(ctx, cardOrder, []BulkItem{{ProductID: 100, Quantity: 2, UnitPrice: 900}})
	require.NoError(t, err)
	assert.Nil(t, res.Stock)
	assert.Equal(t, 1, f.lines.count())
	l, _ := f.lines.get(cardOrder, 100)
	assert.Equal(t, int64(2), l.Quantity)
	assert.Equal(t, int64(1800), l.Subtotal)
}

func TestReconciler_AddBulkValidation(t *testing.T) {
	f := newFixture(t)
	var verr *ValidationError

	_, err := f.r.AddBulk(context.Background(), cardOrder, nil)
	assert.ErrorAs(t, err, &verr)

	_, err = f.r.AddBulk(context.Background(), cardOrder, []BulkItem{{ProductID: 100, Quantity: 0}})
	assert.ErrorAs(t, err, &verr)

	var nf *NotFoundError
	_, err = f.r.AddBulk(context.Background(), 404, []BulkItem{{ProductID: 100, Quantity: 1}})
	assert.ErrorAs(t, err, &nf)
	_, err = f.r.AddBulk(context.Background(), cardOrder, []BulkItem{{ProductID: 12345, Quantity: 1}})
	assert.ErrorAs(t, err, &nf)
}

func TestReconciler_RecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	// Stale derived values, as left by an out-of-band write.
	f := newFixture(t,
		Line{OrderID: cardOrder, ProductID: 100, Quantity: 3, UnitPrice: 1000, Subtotal: 3000},
		Line{OrderID: cardOrder, ProductID: 200, Quantity: 2, UnitPrice: 500, Subtotal: 1000},
	)

	res, err := f.r.Recalculate(ctx, cardOrder)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.True(t, res.Summary.Applied)
	assert.Equal(t, int64(4000), res.Summary.TotalOriginal)
	assert.Equal(t, int64(200), res.Summary.TotalDiscount)
	before, err := f.lines.ListByOrder(ctx, cardOrder)
	require.NoError(t, err)

	f.lines.resetCounters()
	res, err = f.r.Recalculate(ctx, cardOrder)
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Zero(t, f.lines.updates)

	after, err := f.lines.ListByOrder(ctx, cardOrder)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconciler_RecalculateEmptyAndMissing(t *testing.T) {
	f := newFixture(t)

	var nf *NotFoundError
	_, err := f.r.Recalculate(context.Background(), cardOrder)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "order lines", nf.Resource)
	assert.Equal(t, "order lines for order 2 not found", err.Error())
	assert.Zero(t, f.lines.updates)

	_, err = f.r.Recalculate(context.Background(), 404)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "order", nf.Resource)
}

func TestReconciler_TotalsOutOfRange(t *testing.T) {
	ctx := context.Background()
	// Imported before the per-line limits existed.
	legacy := Line{OrderID: cardOrder, ProductID: 100, Quantity: math.MaxInt64, UnitPrice: 1, Subtotal: math.MaxInt64}

	t.Run("add", func(t *testing.T) {
		f := newFixture(t, legacy)
		var verr *ValidationError
		_, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 200, Quantity: 10, UnitPrice: 1})
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 1, f.lines.count())
		_, ok := f.lines.get(cardOrder, 200)
		assert.False(t, ok)
	})
	t.Run("bulk", func(t *testing.T) {
		f := newFixture(t, legacy)
		var verr *ValidationError
		_, err := f.r.AddBulk(ctx, cardOrder, []BulkItem{{ProductID: 200, Quantity: 10, UnitPrice: 1}})
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 1, f.lines.count())
	})
	t.Run("recalculate", func(t *testing.T) {
		f := newFixture(t, legacy)
		var verr *ValidationError
		_, err := f.r.Recalculate(ctx, cardOrder)
		require.ErrorAs(t, err, &verr)
		assert.Zero(t, f.lines.updates)
	})
	t.Run("update", func(t *testing.T) {
		f := newFixture(t,
			legacy,
			Line{OrderID: cardOrder, ProductID: 200, Quantity: 1, UnitPrice: 1, Subtotal: 1},
		)
		var verr *ValidationError
		p := int64(2)
		_, err := f.r.Update(ctx, cardOrder, 200, Patch{UnitPrice: &p})
		require.ErrorAs(t, err, &verr)
		l, _ := f.lines.get(cardOrder, 200)
		assert.Equal(t, int64(1), l.UnitPrice)
	})
	t.Run("at the limits", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 100, Quantity: discount.MaxQuantity, UnitPrice: discount.MaxUnitPrice})
		require.NoError(t, err)
		assert.Equal(t, discount.MaxQuantity*discount.MaxUnitPrice, res.Line.Subtotal+res.Line.Discount)
		assert.Positive(t, res.Line.Subtotal)
		f.requireConsistent(t, cardOrder)
	})
}

func TestReconciler_UpdateUsesNewQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.r.AddBulk(ctx, cardOrder, []BulkItem{
		{ProductID: 100, Quantity: 4, UnitPrice: 1000},
		{ProductID: 200, Quantity: 1, UnitPrice: 500},
	})
	require.NoError(t, err)

	q := int64(3)
	l, err := f.r.Update(ctx, cardOrder, 100, Patch{Quantity: &q})
	require.NoError(t, err)
	assert.Equal(t, int64(3), l.Quantity)
	assert.Equal(t, int64(3000), l.Subtotal)
	assert.Zero(t, l.Discount)

	other, _ := f.lines.get(cardOrder, 200)
	assert.Zero(t, other.Discount, "shrinking below the threshold turns the discount off for every line")
	f.requireConsistent(t, cardOrder)
}

func TestReconciler_UpdatePrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Line{OrderID: cardOrder, ProductID: 100, Quantity: 5, UnitPrice: 100, Subtotal: 475, Discount: 25})

	price := int64(101)
	l, err := f.r.Update(ctx, cardOrder, 100, Patch{UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(5), l.Quantity)
	assert.Equal(t, int64(480), l.Subtotal)
	assert.Equal(t, int64(25), l.Discount)
}

func TestReconciler_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Line{OrderID: cardOrder, ProductID: 100, Quantity: 1, UnitPrice: 100, Subtotal: 100})

	var verr *ValidationError
	_, err := f.r.Update(ctx, cardOrder, 100, Patch{})
	assert.ErrorAs(t, err, &verr)

	zero := int64(0)
	_, err = f.r.Update(ctx, cardOrder, 100, Patch{Quantity: &zero})
	assert.ErrorAs(t, err, &verr)

	huge := discount.MaxQuantity + 1
	_, err = f.r.Update(ctx, cardOrder, 100, Patch{Quantity: &huge})
	assert.ErrorAs(t, err, &verr)
	assert.EqualError(t, err, "invalid quantity: must be at most 1000000")

	var nf *NotFoundError
	q := int64(2)
	_, err = f.r.Update(ctx, cardOrder, 200, Patch{Quantity: &q})
	assert.ErrorAs(t, err, &nf)
}

func TestReconciler_DeleteFlipsDiscountOff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.r.AddBulk(ctx, cardOrder, []BulkItem{
		{ProductID: 100, Quantity: 4, UnitPrice: 1000},
		{ProductID: 200, Quantity: 1, UnitPrice: 500},
	})
	require.NoError(t, err)
	l, _ := f.lines.get(cardOrder, 100)
	require.Equal(t, int64(200), l.Discount)

	require.NoError(t, f.r.Delete(ctx, cardOrder, 200))

	assert.Equal(t, 1, f.lines.count())
	l, _ = f.lines.get(cardOrder, 100)
	assert.Zero(t, l.Discount)
	assert.Equal(t, int64(4000), l.Subtotal)

	var nf *NotFoundError
	assert.ErrorAs(t, f.r.Delete(ctx, cardOrder, 200), &nf)
}

func TestReconciler_AdjustStockIfTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.r.AdjustStockIfTransfer(ctx, cardOrder, 100, 3)
	assert.False(t, res.Attempted)
	assert.Equal(t, int64(10), f.products.stock(100))

	res = f.r.AdjustStockIfTransfer(ctx, transferOrder, 100, 3)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(7), f.products.stock(100))

	res = f.r.AdjustStockIfTransfer(ctx, transferOrder, 999, 1)
	assert.True(t, res.Attempted)
	assert.False(t, res.Applied)
	var nf *NotFoundError
	assert.ErrorAs(t, res.Err, &nf)
}

func TestReconciler_ConcurrentAddsStayConsistent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for _, pid := range []int64{7, 100, 200, 300} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: pid, Quantity: 2, UnitPrice: 333})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, f.lines.count())
	f.requireConsistent(t, cardOrder)
}

func TestReconciler_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := NewReconciler(f.lines, f.orders, f.products, WithPolicy(discount.Policy{
		Threshold: 1,
		Rate:      decimal.RequireFromString("0.10"),
	}))

	res, err := r.AddOrUpdate(ctx, Input{OrderID: cardOrder, ProductID: 100, Quantity: 2, UnitPrice: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Line.Discount)
}
