// Package orderline keeps the lines of an order consistent: every mutation
// reprices the whole order under one volume discount flag, and lines
// committed to bank transfer orders reserve product stock.
package orderline

import (
	"context"
	"fmt"

	"github.com/xenking/spinzone-api/internal/domain/discount"
)

// Line is one product-quantity-price record attached to an order. Discount
// and Subtotal are derived; only the reconciler writes them.
type Line struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice int64
	Discount  int64
	Subtotal  int64
}

// Original is the undiscounted amount, Quantity * UnitPrice.
func (l Line) Original() int64 {
	return l.Quantity * l.UnitPrice
}

func (l Line) item() discount.Item {
	return discount.Item{Quantity: l.Quantity, UnitPrice: l.UnitPrice}
}

func items(lines []Line) []discount.Item {
	out := make([]discount.Item, len(lines))
	for i, l := range lines {
		out[i] = l.item()
	}
	return out
}

// Input is a line as submitted by a client.
type Input struct {
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice int64
}

func (in Input) validate() error {
	if in.OrderID <= 0 {
		return &ValidationError{Field: "order_id", Reason: "must be positive"}
	}
	if in.ProductID <= 0 {
		return &ValidationError{Field: "product_id", Reason: "must be positive"}
	}
	if err := validateQuantity(in.Quantity); err != nil {
		return err
	}
	return validateUnitPrice(in.UnitPrice)
}

func validateQuantity(q int64) error {
	switch {
	case q < 1:
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	case q > discount.MaxQuantity:
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be at most %d", discount.MaxQuantity)}
	}
	return nil
}

func validateUnitPrice(p int64) error {
	switch {
	case p < 0:
		return &ValidationError{Field: "unit_price", Reason: "must not be negative"}
	case p > discount.MaxUnitPrice:
		return &ValidationError{Field: "unit_price", Reason: fmt.Sprintf("must be at most %d", discount.MaxUnitPrice)}
	}
	return nil
}

// Patch is a partial line update. Nil fields keep their current value.
type Patch struct {
	Quantity  *int64
	UnitPrice *int64
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Quantity == nil && p.UnitPrice == nil
}

func (p Patch) validate() error {
	if p.Empty() {
		return &ValidationError{Reason: "no fields provided to update"}
	}
	if p.Quantity != nil {
		if err := validateQuantity(*p.Quantity); err != nil {
			return err
		}
	}
	if p.UnitPrice != nil {
		return validateUnitPrice(*p.UnitPrice)
	}
	return nil
}

// Apply returns l with the present patch fields overwritten.
func (p Patch) Apply(l Line) Line {
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		l.UnitPrice = *p.UnitPrice
	}
	return l
}

// Repository persists order lines. Lines are addressed by their natural key
// (OrderID, ProductID) for writes.
type Repository interface {
	ListByOrder(ctx context.Context, orderID int64) ([]Line, error)
	ListByProduct(ctx context.Context, productID int64) ([]Line, error)
	ListAll(ctx context.Context) ([]Line, error)
	// GetByID returns ErrLineNotFound when no line has the id.
	GetByID(ctx context.Context, id int64) (*Line, error)
	// Insert stores lines and returns them with their assigned ids.
	Insert(ctx context.Context, lines ...Line) ([]Line, error)
	// Update overwrites quantity, unit price, discount and subtotal of the
	// line matching l's natural key.
	Update(ctx context.Context, l Line) error
	Delete(ctx context.Context, orderID, productID int64) error
}
