package order

import (
	"context"

	"github.com/go-faster/errors"
)

// PaymentMethodTransfer identifies bank transfer payments. Transfer is the only
// method that reserves stock as soon as a line is committed; every other
// method defers stock changes until the payment is confirmed.
const PaymentMethodTransfer int64 = 1

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is the order header as seen by the order line engine. Headers are
// owned by another service and are read-only here.
type Order struct {
	ID              int64
	PaymentMethodID int64
}

// IsTransfer reports whether the order is paid by bank transfer.
func (o Order) IsTransfer() bool {
	return o.PaymentMethodID == PaymentMethodTransfer
}

// Repository defines read access to order headers.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
}
