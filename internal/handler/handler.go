// Package handler exposes the order line engine over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/spinzone-api/internal/domain/orderline"
)

// Compile-time check that the reconciler serves every route.
var _ Service = (*orderline.Reconciler)(nil)

// Service is the order line engine as used by the HTTP layer.
type Service interface {
	AddOrUpdate(ctx context.Context, in orderline.Input) (*orderline.LineResult, error)
	AddBulk(ctx context.Context, orderID int64, items []orderline.BulkItem) (*orderline.BulkResult, error)
	Update(ctx context.Context, orderID, productID int64, patch orderline.Patch) (*orderline.Line, error)
	Delete(ctx context.Context, orderID, productID int64) error
	Recalculate(ctx context.Context, orderID int64) (*orderline.RecalcResult, error)

	ListByOrder(ctx context.Context, orderID int64) (*orderline.OrderLines, error)
	ListByProduct(ctx context.Context, productID int64) ([]orderline.Line, error)
	Get(ctx context.Context, lineID int64) (*orderline.Line, error)
	BestSellers(ctx context.Context, limit int) ([]orderline.BestSeller, error)
}

// Handler serves the /order-line API.
type Handler struct {
	lines Service
}

// NewHandler returns a Handler backed by lines.
func NewHandler(lines Service) *Handler {
	return &Handler{lines: lines}
}

// Mount registers the order line routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/order-line", func(r chi.Router) {
		r.Post("/", h.AddLine)
		r.Post("/bulk/{order_id}", h.AddBulk)

		r.Get("/order/{order_id}", h.ListByOrder)
		r.Post("/order/{order_id}/recalculate-discounts", h.Recalculate)
		r.Get("/product/{product_id}", h.ListByProduct)
		r.Get("/products/best-sellers", h.BestSellers)

		r.Get("/{line_id}", h.GetLine)
		r.Put("/{order_id}/{product_id}", h.UpdateLine)
		r.Delete("/{order_id}/{product_id}", h.DeleteLine)
	})
}

// Router returns a chi router serving only the order line routes, with JSON
// 404 and 405 responses.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.Mount(r)
	return r
}
