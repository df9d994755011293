package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item with its on-hand stock.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int64
}

// Repository defines the product operations the order line engine needs.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	// SetStock overwrites the stock counter of a product.
	SetStock(ctx context.Context, id int64, stock int64) error
}
