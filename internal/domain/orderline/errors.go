package orderline

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrLineNotFound is returned by repositories when no line matches.
var ErrLineNotFound = errors.New("order line not found")

// NotFoundError indicates a referenced order, product or line is absent.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func orderNotFound(id int64) error {
	return &NotFoundError{Resource: "order", ID: fmt.Sprint(id)}
}

func productNotFound(id int64) error {
	return &NotFoundError{Resource: "product", ID: fmt.Sprint(id)}
}

func lineNotFound(orderID, productID int64) error {
	return &NotFoundError{
		Resource: "order line",
		ID:       fmt.Sprintf("(order %d, product %d)", orderID, productID),
	}
}

func noLines(orderID int64) error {
	return &NotFoundError{Resource: "order lines", ID: fmt.Sprintf("for order %d", orderID)}
}

// ValidationError indicates malformed input: a non-positive quantity, a
// negative price, an empty patch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a store failure during Op.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
