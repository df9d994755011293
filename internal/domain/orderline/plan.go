package orderline

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/domain/discount"
)

// reprice recomputes the derived fields of lines in place under a single
// order-wide flag and reports the flag. lines are left untouched when their
// totals do not fit in an int64.
func (r *Reconciler) reprice(lines []Line) (bool, error) {
	its := items(lines)
	if err := discount.CheckTotals(its); err != nil {
		return false, &ValidationError{Reason: "order totals exceed the supported range"}
	}
	applies := r.policy.AppliesForOrder(its)
	for i := range lines {
		lines[i].Subtotal, lines[i].Discount = r.policy.ComputeLine(lines[i].Quantity, lines[i].UnitPrice, applies)
	}
	return applies, nil
}

func sameValues(a, b Line) bool {
	return a.Quantity == b.Quantity &&
		a.UnitPrice == b.UnitPrice &&
		a.Discount == b.Discount &&
		a.Subtotal == b.Subtotal
}

// update rewrites next[idx] over its persisted state before.
type update struct {
	idx    int
	before Line
}

// plan is the set of writes that turns the persisted lines of an order into
// the repriced set. Writes run in order: remove, inserts (one batch),
// updates.
type plan struct {
	remove  *Line
	inserts []int
	updates []update
}

func (p *plan) empty() bool {
	return p.remove == nil && len(p.inserts) == 0 && len(p.updates) == 0
}

func (p *plan) writes() int {
	n := len(p.inserts) + len(p.updates)
	if p.remove != nil {
		n++
	}
	return n
}

// diff plans the writes from current to next. Lines of next with a zero ID
// are inserted; lines matching a current line by product are updated only
// when a value changed. Indices listed in first are planned before the rest,
// so the mutated line lands before its siblings.
func diff(current, next []Line, first ...int) *plan {
	byProduct := make(map[int64]Line, len(current))
	for _, l := range current {
		byProduct[l.ProductID] = l
	}

	p := &plan{}
	visit := func(i int) {
		l := next[i]
		before, ok := byProduct[l.ProductID]
		if !ok || l.ID == 0 {
			p.inserts = append(p.inserts, i)
			return
		}
		if !sameValues(before, l) {
			p.updates = append(p.updates, update{idx: i, before: before})
		}
	}

	done := make(map[int]struct{}, len(first))
	for _, i := range first {
		done[i] = struct{}{}
		visit(i)
	}
	for i := range next {
		if _, ok := done[i]; !ok {
			visit(i)
		}
	}
	return p
}

// apply executes p against the repository, writing assigned ids back into
// next. When a write fails, the writes already made are undone in reverse
// and a PersistenceError is returned.
func (r *Reconciler) apply(ctx context.Context, op string, p *plan, next []Line) error {
	var (
		removed  bool
		inserted []Line
		updated  []update
	)
	fail := func(err error) error {
		r.compensate(ctx, op, removed, p.remove, inserted, updated)
		return persistence(op, err)
	}

	if p.remove != nil {
		if err := r.lines.Delete(ctx, p.remove.OrderID, p.remove.ProductID); err != nil {
			return fail(err)
		}
		removed = true
	}

	if len(p.inserts) > 0 {
		batch := make([]Line, len(p.inserts))
		for i, idx := range p.inserts {
			batch[i] = next[idx]
		}
		got, err := r.lines.Insert(ctx, batch...)
		if err != nil {
			return fail(err)
		}
		byProduct := make(map[int64]Line, len(got))
		for _, l := range got {
			byProduct[l.ProductID] = l
		}
		for _, idx := range p.inserts {
			if l, ok := byProduct[next[idx].ProductID]; ok {
				next[idx].ID = l.ID
			}
		}
		inserted = batch
	}

	for _, u := range p.updates {
		if err := r.lines.Update(ctx, next[u.idx]); err != nil {
			return fail(err)
		}
		updated = append(updated, u)
	}
	return nil
}

// compensate restores the lines touched by a partially applied plan. It is
// best-effort: failures are logged and the original error is kept.
func (r *Reconciler) compensate(ctx context.Context, op string, removed bool, remove *Line, inserted []Line, updated []update) {
	lg := zctx.From(ctx)
	if removed || len(inserted) > 0 || len(updated) > 0 {
		lg.Warn("Write failed partway, restoring order lines",
			zap.String("op", op),
			zap.Int("updated", len(updated)),
			zap.Int("inserted", len(inserted)),
		)
	}
	for i := len(updated) - 1; i >= 0; i-- {
		before := updated[i].before
		if err := r.lines.Update(ctx, before); err != nil {
			lg.Error("Restore order line failed",
				zap.Int64("order_id", before.OrderID),
				zap.Int64("product_id", before.ProductID),
				zap.Error(err),
			)
		}
	}
	for _, l := range inserted {
		if err := r.lines.Delete(ctx, l.OrderID, l.ProductID); err != nil {
			lg.Error("Remove inserted order line failed",
				zap.Int64("order_id", l.OrderID),
				zap.Int64("product_id", l.ProductID),
				zap.Error(err),
			)
		}
	}
	if removed && remove != nil {
		if _, err := r.lines.Insert(ctx, *remove); err != nil {
			lg.Error("Reinsert deleted order line failed",
				zap.Int64("order_id", remove.OrderID),
				zap.Int64("product_id", remove.ProductID),
				zap.Error(err),
			)
		}
	}
}
