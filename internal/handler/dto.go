package handler

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/spinzone-api/internal/domain/discount"
	"github.com/xenking/spinzone-api/internal/domain/orderline"
)

// Derived columns are not accepted from clients, so the request types carry
// only quantity and price.

type addLineRequest struct {
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type bulkItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type bulkRequest struct {
	Lines []bulkItemRequest `json:"lines"`
}

type updateLineRequest struct {
	Quantity  *int64 `json:"quantity"`
	UnitPrice *int64 `json:"unit_price"`
}

type lineResponse struct {
	ID        int64 `json:"order_line_id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	Discount  int64 `json:"discount"`
	Subtotal  int64 `json:"subtotal"`
}

func toLine(l orderline.Line) lineResponse {
	return lineResponse{
		ID:        l.ID,
		OrderID:   l.OrderID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice,
		Discount:  l.Discount,
		Subtotal:  l.Subtotal,
	}
}

func toLines(lines []orderline.Line) []lineResponse {
	out := make([]lineResponse, len(lines))
	for i, l := range lines {
		out[i] = toLine(l)
	}
	return out
}

// pricedLineResponse is a line in the order listing, with the undiscounted
// amount and the rate in effect.
type pricedLineResponse struct {
	lineResponse
	OriginalPrice int64  `json:"original_price"`
	DiscountRate  string `json:"discount_rate"`
}

type summaryResponse struct {
	TotalQuantity   int64  `json:"total_quantity"`
	DiscountApplied bool   `json:"discount_applied"`
	TotalOriginal   int64  `json:"total_original"`
	TotalDiscount   int64  `json:"total_discount"`
	TotalFinal      int64  `json:"total_final"`
	DiscountRate    string `json:"discount_rate"`
}

func toSummary(s discount.Summary) summaryResponse {
	return summaryResponse{
		TotalQuantity:   s.TotalQuantity,
		DiscountApplied: s.Applied,
		TotalOriginal:   s.TotalOriginal,
		TotalDiscount:   s.TotalDiscount,
		TotalFinal:      s.TotalFinal,
		DiscountRate:    s.RateLabel(),
	}
}

type orderLinesResponse struct {
	Lines   []pricedLineResponse `json:"lines"`
	Summary summaryResponse      `json:"summary"`
}

func toOrderLines(ol *orderline.OrderLines) orderLinesResponse {
	out := orderLinesResponse{
		Lines:   make([]pricedLineResponse, len(ol.Lines)),
		Summary: toSummary(ol.Summary),
	}
	for i, l := range ol.Lines {
		out.Lines[i] = pricedLineResponse{
			lineResponse:  toLine(l),
			OriginalPrice: l.Original(),
			DiscountRate:  ol.Summary.RateLabel(),
		}
	}
	return out
}

type stockResponse struct {
	ProductID int64  `json:"product_id"`
	Attempted bool   `json:"attempted"`
	Applied   bool   `json:"applied"`
	Previous  int64  `json:"previous_stock"`
	Current   int64  `json:"current_stock"`
	Error     string `json:"error,omitempty"`
}

func toStock(s orderline.StockAdjustment) stockResponse {
	out := stockResponse{
		ProductID: s.ProductID,
		Attempted: s.Attempted,
		Applied:   s.Applied,
		Previous:  s.Previous,
		Current:   s.Current,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}

// addLineResponse is the persisted line with the outcome of the call next to
// its fields.
type addLineResponse struct {
	lineResponse
	Message string        `json:"message"`
	Stock   stockResponse `json:"stock_adjustment"`
}

type bulkResponse struct {
	Message         string          `json:"message"`
	Lines           []lineResponse  `json:"lines"`
	DiscountApplied bool            `json:"discount_applied"`
	TotalQuantity   int64           `json:"total_quantity"`
	Stock           []stockResponse `json:"stock_adjustments"`
}

type recalcResponse struct {
	Message         string          `json:"message"`
	DiscountApplied bool            `json:"discount_applied"`
	TotalQuantity   int64           `json:"total_quantity"`
	Written         int             `json:"lines_written"`
	Lines           []lineResponse  `json:"lines"`
	Summary         summaryResponse `json:"summary"`
}

type updateLineResponse struct {
	lineResponse
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type bestSellerResponse struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	TotalSold int64           `json:"total_sold"`
}

func toBestSellers(in []orderline.BestSeller) []bestSellerResponse {
	out := make([]bestSellerResponse, len(in))
	for i, b := range in {
		out[i] = bestSellerResponse{
			ProductID: b.Product.ID,
			Name:      b.Product.Name,
			Price:     b.Product.Price,
			Stock:     b.Product.Stock,
			TotalSold: b.TotalSold,
		}
	}
	return out
}

type errorResponse struct {
	Detail string `json:"detail"`
}
