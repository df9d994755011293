package orderline

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/domain/product"
	"github.com/xenking/spinzone-api/internal/lock"
)

const instrumentationName = "github.com/xenking/spinzone-api/internal/domain/orderline"

// Reconciler owns the derived discount and subtotal of every order line.
type Reconciler struct {
	lines    Repository
	orders   order.Repository
	products product.Repository
	locker   lock.Locker
	policy   discount.Policy
	// noStock disables the reservation done by AddOrUpdate and AddBulk.
	noStock bool

	tracer          trace.Tracer
	reconciliations metric.Int64Counter
	linesWritten    metric.Int64Counter
	stockAdjusted   metric.Int64Counter
}

// Option configures a Reconciler.
type Option func(*reconcilerOptions)

type reconcilerOptions struct {
	locker         lock.Locker
	policy         discount.Policy
	noStock        bool
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithLocker sets the per-order lock. Defaults to an in-process keyed mutex.
func WithLocker(l lock.Locker) Option {
	return func(o *reconcilerOptions) { o.locker = l }
}

// WithPolicy overrides discount.DefaultPolicy.
func WithPolicy(p discount.Policy) Option {
	return func(o *reconcilerOptions) { o.policy = p }
}

// WithoutStockReservation stops AddOrUpdate and AddBulk from decrementing
// product stock for transfer orders. Their StockAdjustment is reported as not
// attempted. AdjustStockIfTransfer is unaffected.
func WithoutStockReservation() Option {
	return func(o *reconcilerOptions) { o.noStock = true }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *reconcilerOptions) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *reconcilerOptions) { o.meterProvider = mp }
}

// NewReconciler creates a Reconciler over the given repositories.
func NewReconciler(lines Repository, orders order.Repository, products product.Repository, opts ...Option) *Reconciler {
	o := reconcilerOptions{
		policy:         discount.DefaultPolicy,
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = lock.NewKeyed()
	}

	r := &Reconciler{
		lines:    lines,
		orders:   orders,
		products: products,
		locker:   o.locker,
		policy:   o.policy,
		noStock:  o.noStock,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
	}
	meter := o.meterProvider.Meter(instrumentationName)
	r.reconciliations = counter(meter, "orderline.reconciliations", "Order repricing passes")
	r.linesWritten = counter(meter, "orderline.lines_written", "Order line rows written")
	r.stockAdjusted = counter(meter, "orderline.stock_adjustments", "Stock adjustment attempts")
	return r
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64Counter(name)
	}
	return c
}

func (r *Reconciler) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "orderline."+name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (r *Reconciler) lockOrder(ctx context.Context, orderID int64) (func(), error) {
	unlock, err := r.locker.Lock(ctx, orderID)
	if err != nil {
		return nil, persistence("lock order", err)
	}
	return unlock, nil
}

func (r *Reconciler) loadOrder(ctx context.Context, id int64) (*order.Order, error) {
	o, err := r.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, persistence("load order", err)
	}
	return o, nil
}

func (r *Reconciler) loadProduct(ctx context.Context, id int64) (*product.Product, error) {
	p, err := r.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, productNotFound(id)
		}
		return nil, persistence("load product", err)
	}
	return p, nil
}

func (r *Reconciler) loadLines(ctx context.Context, orderID int64) ([]Line, error) {
	lines, err := r.lines.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, persistence("load order lines", err)
	}
	return lines, nil
}

// commit applies the plan and records metrics.
func (r *Reconciler) commit(ctx context.Context, op string, p *plan, next []Line) error {
	if err := r.apply(ctx, op, p, next); err != nil {
		return err
	}
	r.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	r.linesWritten.Add(ctx, int64(p.writes()), metric.WithAttributes(attribute.String("op", op)))
	return nil
}

func indexOf(lines []Line, productID int64) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// LineResult is the outcome of AddOrUpdate.
type LineResult struct {
	Line Line
	// Updated is true when the line already existed and was overwritten.
	Updated bool
	Stock   StockAdjustment
}

// AddOrUpdate adds a line to an order, or overwrites quantity and unit price
// when the order already holds the product, then reprices every line of the
// order. Transfer orders reserve stock for the line quantity.
func (r *Reconciler) AddOrUpdate(ctx context.Context, in Input) (_ *LineResult, rerr error) {
	ctx, span := r.start(ctx, "AddOrUpdate",
		attribute.Int64("order_id", in.OrderID),
		attribute.Int64("product_id", in.ProductID),
	)
	defer func() { finish(span, rerr) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	unlock, err := r.lockOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := r.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if _, err := r.loadProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}
	current, err := r.loadLines(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	next := append([]Line(nil), current...)
	idx := indexOf(next, in.ProductID)
	updated := idx >= 0
	if updated {
		next[idx].Quantity = in.Quantity
		next[idx].UnitPrice = in.UnitPrice
	} else {
		next = append(next, Line{OrderID: in.OrderID, ProductID: in.ProductID, Quantity: in.Quantity, UnitPrice: in.UnitPrice})
		idx = len(next) - 1
	}
	applies, err := r.reprice(next)
	if err != nil {
		return nil, err
	}

	p := diff(current, next, idx)
	if err := r.commit(ctx, "add order line", p, next); err != nil {
		return nil, err
	}
	zctx.From(ctx).Debug("Order line committed",
		zap.Int64("order_id", in.OrderID),
		zap.Int64("product_id", in.ProductID),
		zap.Bool("updated", updated),
		zap.Bool("discount_applied", applies),
		zap.Int("writes", p.writes()),
	)

	res := &LineResult{Line: next[idx], Updated: updated, Stock: StockAdjustment{ProductID: in.ProductID}}
	if !r.noStock {
		res.Stock = r.adjustStock(ctx, o, in.ProductID, in.Quantity)
	}
	return res, nil
}

// BulkItem is one line of a bulk add.
type BulkItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

// BulkResult is the outcome of AddBulk.
type BulkResult struct {
	// Lines are the committed lines of the request, in request order.
	Lines         []Line
	Applied       bool
	TotalQuantity int64
	Stock         []StockAdjustment
}

// AddBulk adds many lines to an order in one pass. The discount flag is
// evaluated once over the existing and submitted quantities and the whole
// order is repriced. Products already in the order are overwritten, as are
// repeated products within items, where the last occurrence wins.
func (r *Reconciler) AddBulk(ctx context.Context, orderID int64, bulk []BulkItem) (_ *BulkResult, rerr error) {
	ctx, span := r.start(ctx, "AddBulk",
		attribute.Int64("order_id", orderID),
		attribute.Int("items", len(bulk)),
	)
	defer func() { finish(span, rerr) }()

	if len(bulk) == 0 {
		return nil, &ValidationError{Field: "lines", Reason: "at least one line is required"}
	}
	for _, it := range bulk {
		in := Input{OrderID: orderID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		if err := in.validate(); err != nil {
			return nil, err
		}
	}

	// Collapse repeated products, keeping the position of the first
	// occurrence and the values of the last.
	var (
		seq       []int64
		byProduct = make(map[int64]BulkItem, len(bulk))
	)
	for _, it := range bulk {
		if _, ok := byProduct[it.ProductID]; !ok {
			seq = append(seq, it.ProductID)
		}
		byProduct[it.ProductID] = it
	}

	unlock, err := r.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := r.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, pid := range seq {
		if _, err := r.loadProduct(ctx, pid); err != nil {
			return nil, err
		}
	}
	current, err := r.loadLines(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next := append([]Line(nil), current...)
	touched := make([]int, 0, len(seq))
	for _, pid := range seq {
		it := byProduct[pid]
		idx := indexOf(next, pid)
		if idx >= 0 {
			next[idx].Quantity = it.Quantity
			next[idx].UnitPrice = it.UnitPrice
		} else {
			next = append(next, Line{OrderID: orderID, ProductID: pid, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
			idx = len(next) - 1
		}
		touched = append(touched, idx)
	}
	applies, err := r.reprice(next)
	if err != nil {
		return nil, err
	}

	p := diff(current, next, touched...)
	if err := r.commit(ctx, "add order lines", p, next); err != nil {
		return nil, err
	}

	res := &BulkResult{
		Lines:         make([]Line, 0, len(touched)),
		Applied:       applies,
		TotalQuantity: discount.TotalQuantity(items(next)),
	}
	for _, idx := range touched {
		res.Lines = append(res.Lines, next[idx])
	}
	if o.IsTransfer() && !r.noStock {
		res.Stock = make([]StockAdjustment, 0, len(res.Lines))
		for _, l := range res.Lines {
			res.Stock = append(res.Stock, r.adjustStock(ctx, o, l.ProductID, l.Quantity))
		}
	}
	return res, nil
}

// Update applies patch to the line of productID in orderID and reprices the
// order using the other lines' current quantities plus the new value.
func (r *Reconciler) Update(ctx context.Context, orderID, productID int64, patch Patch) (_ *Line, rerr error) {
	ctx, span := r.start(ctx, "Update",
		attribute.Int64("order_id", orderID),
		attribute.Int64("product_id", productID),
	)
	defer func() { finish(span, rerr) }()

	if err := patch.validate(); err != nil {
		return nil, err
	}
	unlock, err := r.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := r.loadLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(current, productID)
	if idx < 0 {
		return nil, lineNotFound(orderID, productID)
	}

	next := append([]Line(nil), current...)
	next[idx] = patch.Apply(next[idx])
	if _, err := r.reprice(next); err != nil {
		return nil, err
	}

	if err := r.commit(ctx, "update order line", diff(current, next, idx), next); err != nil {
		return nil, err
	}
	l := next[idx]
	return &l, nil
}

// Delete removes the line of productID from orderID and reprices the
// remaining lines, which may turn the discount off.
func (r *Reconciler) Delete(ctx context.Context, orderID, productID int64) (rerr error) {
	ctx, span := r.start(ctx, "Delete",
		attribute.Int64("order_id", orderID),
		attribute.Int64("product_id", productID),
	)
	defer func() { finish(span, rerr) }()

	unlock, err := r.lockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := r.loadLines(ctx, orderID)
	if err != nil {
		return err
	}
	idx := indexOf(current, productID)
	if idx < 0 {
		return lineNotFound(orderID, productID)
	}

	removed := current[idx]
	next := make([]Line, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	if _, err := r.reprice(next); err != nil {
		return err
	}

	p := diff(current, next)
	p.remove = &removed
	return r.commit(ctx, "delete order line", p, next)
}

// RecalcResult is the outcome of Recalculate.
type RecalcResult struct {
	Lines   []Line
	Summary discount.Summary
	// Written is the number of lines rewritten; zero when the order was
	// already consistent.
	Written int
}

// Recalculate reprices every line of an order. Lines whose derived values
// are already correct are left untouched, so a second call writes nothing.
// An order without lines is reported as a NotFoundError.
func (r *Reconciler) Recalculate(ctx context.Context, orderID int64) (_ *RecalcResult, rerr error) {
	ctx, span := r.start(ctx, "Recalculate", attribute.Int64("order_id", orderID))
	defer func() { finish(span, rerr) }()

	unlock, err := r.lockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := r.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}
	current, err := r.loadLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, noLines(orderID)
	}

	next := append([]Line(nil), current...)
	if _, err := r.reprice(next); err != nil {
		return nil, err
	}
	p := diff(current, next)
	if !p.empty() {
		if err := r.commit(ctx, "recalculate order", p, next); err != nil {
			return nil, err
		}
	}
	return &RecalcResult{
		Lines:   next,
		Summary: r.policy.Summarize(items(next)),
		Written: p.writes(),
	}, nil
}
