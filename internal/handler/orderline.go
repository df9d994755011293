package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xenking/spinzone-api/internal/domain/orderline"
)

// AddLine handles POST /order-line. A product already in the order is
// overwritten and answered with 200, a new line with 201.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.lines.AddOrUpdate(r.Context(), orderline.Input{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, msg := http.StatusCreated, "line added to order"
	if res.Updated {
		status, msg = http.StatusOK, "line updated in order"
	}
	writeJSON(w, status, addLineResponse{
		lineResponse: toLine(res.Line),
		Message:      msg,
		Stock:        toStock(res.Stock),
	})
}

// AddBulk handles POST /order-line/bulk/{order_id}.
func (h *Handler) AddBulk(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req bulkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]orderline.BulkItem, len(req.Lines))
	for i, it := range req.Lines {
		items[i] = orderline.BulkItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}

	res, err := h.lines.AddBulk(r.Context(), orderID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stock := make([]stockResponse, len(res.Stock))
	for i, s := range res.Stock {
		stock[i] = toStock(s)
	}
	writeJSON(w, http.StatusCreated, bulkResponse{
		Message:         fmt.Sprintf("added %d lines to order %d", len(res.Lines), orderID),
		Lines:           toLines(res.Lines),
		DiscountApplied: res.Applied,
		TotalQuantity:   res.TotalQuantity,
		Stock:           stock,
	})
}

// ListByOrder handles GET /order-line/order/{order_id}.
func (h *Handler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.lines.ListByOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderLines(res))
}

// Recalculate handles POST /order-line/order/{order_id}/recalculate-discounts.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.lines.Recalculate(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recalcResponse{
		Message:         "discounts recalculated",
		DiscountApplied: res.Summary.Applied,
		TotalQuantity:   res.Summary.TotalQuantity,
		Written:         res.Written,
		Lines:           toLines(res.Lines),
		Summary:         toSummary(res.Summary),
	})
}

// UpdateLine handles PUT /order-line/{order_id}/{product_id}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	productID, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateLineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	l, err := h.lines.Update(r.Context(), orderID, productID, orderline.Patch{
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateLineResponse{lineResponse: toLine(*l), Message: "line updated"})
}

// DeleteLine handles DELETE /order-line/{order_id}/{product_id}.
func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "order_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	productID, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.lines.Delete(r.Context(), orderID, productID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "line removed from order"})
}

// ListByProduct handles GET /order-line/product/{product_id}.
func (h *Handler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := h.lines.ListByProduct(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLines(lines))
}

// GetLine handles GET /order-line/{line_id}.
func (h *Handler) GetLine(w http.ResponseWriter, r *http.Request) {
	lineID, err := pathID(r, "line_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.lines.Get(r.Context(), lineID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLine(*l))
}

// BestSellers handles GET /order-line/products/best-sellers?limit=N. A
// missing limit means 15, zero or a negative value means no limit.
func (h *Handler) BestSellers(w http.ResponseWriter, r *http.Request) {
	limit := orderline.DefaultBestSellersLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, &orderline.ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
		limit = n
	}
	res, err := h.lines.BestSellers(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBestSellers(res))
}
