package orderline

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/domain/order"
)

// StockAdjustment reports the stock side effect of committing a line.
// Failures never undo the line write; they surface here instead.
type StockAdjustment struct {
	ProductID int64
	// Attempted is false when the order is not paid by transfer or stock
	// reservation is disabled.
	Attempted bool
	// Applied is true when the new stock value was written.
	Applied  bool
	Previous int64
	Current  int64
	Err      error
}

func (s StockAdjustment) outcome() string {
	switch {
	case !s.Attempted:
		return "skipped"
	case s.Applied:
		return "applied"
	default:
		return "failed"
	}
}

// AdjustStockIfTransfer decrements the product stock by quantity, clamped at
// zero, when the order is paid by bank transfer. Any other payment method is
// a no-op.
func (r *Reconciler) AdjustStockIfTransfer(ctx context.Context, orderID, productID, quantity int64) StockAdjustment {
	ctx, span := r.start(ctx, "AdjustStockIfTransfer",
		attribute.Int64("order_id", orderID),
		attribute.Int64("product_id", productID),
	)
	defer span.End()

	o, err := r.loadOrder(ctx, orderID)
	if err != nil {
		res := StockAdjustment{ProductID: productID, Attempted: true, Err: err}
		r.recordStock(ctx, orderID, res)
		return res
	}
	return r.adjustStock(ctx, o, productID, quantity)
}

func (r *Reconciler) adjustStock(ctx context.Context, o *order.Order, productID, quantity int64) StockAdjustment {
	res := StockAdjustment{ProductID: productID}
	if !o.IsTransfer() {
		return res
	}
	res.Attempted = true

	p, err := r.loadProduct(ctx, productID)
	if err != nil {
		res.Err = err
		r.recordStock(ctx, o.ID, res)
		return res
	}
	res.Previous = p.Stock
	res.Current = max(0, p.Stock-quantity)

	if err := r.products.SetStock(ctx, productID, res.Current); err != nil {
		res.Err = persistence("update stock", err)
		res.Current = res.Previous
		r.recordStock(ctx, o.ID, res)
		return res
	}
	res.Applied = true
	r.recordStock(ctx, o.ID, res)
	return res
}

func (r *Reconciler) recordStock(ctx context.Context, orderID int64, res StockAdjustment) {
	r.stockAdjusted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", res.outcome())))

	lg := zctx.From(ctx).With(
		zap.Int64("order_id", orderID),
		zap.Int64("product_id", res.ProductID),
	)
	if res.Err != nil {
		lg.Warn("Stock adjustment failed", zap.Error(res.Err))
		return
	}
	lg.Info("Stock adjusted",
		zap.Int64("previous", res.Previous),
		zap.Int64("current", res.Current),
	)
}
