package orderline

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/spinzone-api/internal/domain/order"
	"github.com/xenking/spinzone-api/internal/domain/product"
)

type lineKey struct{ orderID, productID int64 }

// fakeLines is an in-memory Repository with failure injection.
type fakeLines struct {
	mu     sync.Mutex
	rows   map[lineKey]Line
	nextID int64

	updates int
	inserts int
	deletes int

	// failUpdateAt makes the n-th Update call (1-based, counted from the
	// moment it is set) fail. Zero disables.
	failUpdateAt int
	updateCalls  int
	insertErr    error
	listErr      error
}

func newFakeLines(lines ...Line) *fakeLines {
	f := &fakeLines{rows: make(map[lineKey]Line), nextID: 1}
	for _, l := range lines {
		if l.ID == 0 {
			l.ID = f.nextID
		}
		f.nextID = max(f.nextID, l.ID+1)
		f.rows[lineKey{l.OrderID, l.ProductID}] = l
	}
	return f
}

func (f *fakeLines) sorted(match func(Line) bool) []Line {
	var out []Line
	for _, l := range f.rows {
		if match(l) {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b Line) int { return int(a.ID - b.ID) })
	return out
}

func (f *fakeLines) ListByOrder(_ context.Context, orderID int64) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sorted(func(l Line) bool { return l.OrderID == orderID }), nil
}

func (f *fakeLines) ListByProduct(_ context.Context, productID int64) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(l Line) bool { return l.ProductID == productID }), nil
}

func (f *fakeLines) ListAll(context.Context) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sorted(func(Line) bool { return true }), nil
}

func (f *fakeLines) GetByID(_ context.Context, id int64) (*Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, ErrLineNotFound
}

func (f *fakeLines) Insert(_ context.Context, lines ...Line) ([]Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		k := lineKey{l.OrderID, l.ProductID}
		if _, ok := f.rows[k]; ok {
			return nil, errors.New("duplicate key")
		}
		if l.ID == 0 {
			l.ID = f.nextID
			f.nextID++
		}
		f.rows[k] = l
		out = append(out, l)
	}
	f.inserts += len(lines)
	return out, nil
}

func (f *fakeLines) Update(_ context.Context, l Line) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.failUpdateAt > 0 && f.updateCalls == f.failUpdateAt {
		return errors.New("connection lost")
	}
	k := lineKey{l.OrderID, l.ProductID}
	cur, ok := f.rows[k]
	if !ok {
		return ErrLineNotFound
	}
	cur.Quantity = l.Quantity
	cur.UnitPrice = l.UnitPrice
	cur.Discount = l.Discount
	cur.Subtotal = l.Subtotal
	f.rows[k] = cur
	f.updates++
	return nil
}

func (f *fakeLines) Delete(_ context.Context, orderID, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, lineKey{orderID, productID})
	f.deletes++
	return nil
}

func (f *fakeLines) get(orderID, productID int64) (Line, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[lineKey{orderID, productID}]
	return l, ok
}

func (f *fakeLines) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeLines) resetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates, f.inserts, f.deletes, f.updateCalls = 0, 0, 0, 0
}

type fakeOrders map[int64]order.Order

func (f fakeOrders) GetByID(_ context.Context, id int64) (*order.Order, error) {
	o, ok := f[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

type fakeProducts struct {
	mu       sync.Mutex
	items    map[int64]product.Product
	stockErr error
}

func newFakeProducts(ps ...product.Product) *fakeProducts {
	f := &fakeProducts{items: make(map[int64]product.Product)}
	for _, p := range ps {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) GetByID(_ context.Context, id int64) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) SetStock(_ context.Context, id, stock int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stockErr != nil {
		return f.stockErr
	}
	p, ok := f.items[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Stock = stock
	f.items[id] = p
	return nil
}

func (f *fakeProducts) stock(id int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Stock
}
