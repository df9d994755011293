package orderline

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/domain/product"
)

// DefaultBestSellersLimit is used when no limit is requested.
const DefaultBestSellersLimit = 15

// OrderLines is an order's lines priced under the current policy together
// with the order totals.
type OrderLines struct {
	Lines   []Line
	Summary discount.Summary
}

// ListByOrder returns the lines of an order with derived fields computed on
// the fly. Nothing is written.
func (r *Reconciler) ListByOrder(ctx context.Context, orderID int64) (*OrderLines, error) {
	if _, err := r.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}
	lines, err := r.loadLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := r.reprice(lines); err != nil {
		return nil, err
	}
	return &OrderLines{
		Lines:   lines,
		Summary: r.policy.Summarize(items(lines)),
	}, nil
}

// ListByProduct returns every line referencing a product.
func (r *Reconciler) ListByProduct(ctx context.Context, productID int64) ([]Line, error) {
	if _, err := r.loadProduct(ctx, productID); err != nil {
		return nil, err
	}
	lines, err := r.lines.ListByProduct(ctx, productID)
	if err != nil {
		return nil, persistence("load product lines", err)
	}
	return lines, nil
}

// Get returns a line by its surrogate id.
func (r *Reconciler) Get(ctx context.Context, lineID int64) (*Line, error) {
	l, err := r.lines.GetByID(ctx, lineID)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return nil, &NotFoundError{Resource: "order line", ID: fmt.Sprint(lineID)}
		}
		return nil, persistence("load order line", err)
	}
	return l, nil
}

// BestSeller is a product ranked by the total quantity across all lines.
type BestSeller struct {
	Product   product.Product
	TotalSold int64
}

// BestSellers ranks products by total quantity sold, highest first, ties
// broken by product id. A non-positive limit returns every product. Products
// referenced by lines but missing from the catalog are skipped.
func (r *Reconciler) BestSellers(ctx context.Context, limit int) ([]BestSeller, error) {
	all, err := r.lines.ListAll(ctx)
	if err != nil {
		return nil, persistence("load order lines", err)
	}

	totals := make(map[int64]int64)
	for _, l := range all {
		totals[l.ProductID] += l.Quantity
	}
	type ranked struct {
		productID int64
		total     int64
	}
	ranking := make([]ranked, 0, len(totals))
	for id, total := range totals {
		ranking = append(ranking, ranked{productID: id, total: total})
	}
	slices.SortFunc(ranking, func(a, b ranked) int {
		if c := cmp.Compare(b.total, a.total); c != 0 {
			return c
		}
		return cmp.Compare(a.productID, b.productID)
	})
	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}

	found := make([]*product.Product, len(ranking))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, rk := range ranking {
		g.Go(func() error {
			p, err := r.products.GetByID(gctx, rk.productID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return nil
				}
				return err
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, persistence("load products", err)
	}

	out := make([]BestSeller, 0, len(ranking))
	for i, rk := range ranking {
		if found[i] == nil {
			continue
		}
		out = append(out, BestSeller{Product: *found[i], TotalSold: rk.total})
	}
	return out, nil
}
