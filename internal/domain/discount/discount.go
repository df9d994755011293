// Package discount implements the volume discount rules applied to order
// lines: a flat percentage taken off every line once the order's total
// quantity exceeds a threshold.
package discount

import (
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Bounds on a single line. Any line within them has an amount that fits in
// an int64 with room left for order totals.
const (
	MaxQuantity  int64 = 1_000_000
	MaxUnitPrice int64 = 1_000_000_000
)

// ErrOutOfRange is returned by CheckTotals when an order total would not fit
// in an int64.
var ErrOutOfRange = errors.New("order totals out of range")

// DefaultPolicy is the production rule: orders with more than 4 units get
// 5% off every line.
var DefaultPolicy = Policy{
	Threshold: 4,
	Rate:      decimal.RequireFromString("0.05"),
}

// Policy holds the volume discount parameters.
type Policy struct {
	// Threshold is the total quantity an order must exceed for the discount
	// to apply. An order totalling exactly Threshold does not qualify.
	Threshold int64
	// Rate is the fraction of the line amount taken off, e.g. 0.05.
	Rate decimal.Decimal
}

// Validate reports whether the policy parameters are usable.
func (p Policy) Validate() error {
	if p.Threshold < 0 {
		return errors.Errorf("threshold must be non-negative, got %d", p.Threshold)
	}
	if p.Rate.IsNegative() || p.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("rate must be within [0, 1], got %s", p.Rate)
	}
	return nil
}

// Item is the quantity and unit price of one order line.
type Item struct {
	Quantity  int64
	UnitPrice int64
}

// ComputeLine returns the subtotal and discount for a single line. The
// discount is truncated towards zero, never rounded: 5% of 303 is 15.
//
// Callers must reject quantity < 1 and unitPrice < 0 beforehand, and run
// CheckTotals over the order the line belongs to.
func (p Policy) ComputeLine(quantity, unitPrice int64, applies bool) (subtotal, discount int64) {
	original := quantity * unitPrice
	if applies {
		discount = decimal.NewFromInt(original).Mul(p.Rate).Floor().IntPart()
	}
	return original - discount, discount
}

// AppliesForOrder reports whether the discount applies to an order holding
// items. items must describe the order after the pending mutation.
func (p Policy) AppliesForOrder(items []Item) bool {
	return TotalQuantity(items) > p.Threshold
}

// TotalQuantity sums the quantity of every item.
func TotalQuantity(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// CheckTotals reports ErrOutOfRange when a line amount, the total quantity or
// the total amount of items overflows an int64. Negative inputs are rejected
// the same way.
func CheckTotals(items []Item) error {
	var quantity, amount int64
	for _, it := range items {
		if it.Quantity < 0 || it.UnitPrice < 0 {
			return ErrOutOfRange
		}
		if it.UnitPrice != 0 && it.Quantity > math.MaxInt64/it.UnitPrice {
			return ErrOutOfRange
		}
		if quantity > math.MaxInt64-it.Quantity {
			return ErrOutOfRange
		}
		line := it.Quantity * it.UnitPrice
		if amount > math.MaxInt64-line {
			return ErrOutOfRange
		}
		quantity += it.Quantity
		amount += line
	}
	return nil
}

// Summary aggregates the pricing of a whole order.
type Summary struct {
	TotalQuantity int64
	Applied       bool
	TotalOriginal int64
	TotalDiscount int64
	TotalFinal    int64
	// Rate is the effective rate: the policy rate when Applied, zero otherwise.
	Rate decimal.Decimal
}

// RateLabel renders the effective rate as a percentage, e.g. "5%".
func (s Summary) RateLabel() string {
	return RateLabel(s.Rate)
}

// RateLabel renders a fractional rate as a percentage string.
func RateLabel(rate decimal.Decimal) string {
	return rate.Shift(2).String() + "%"
}

// Summarize prices every item under a single order-wide flag and returns the
// totals.
func (p Policy) Summarize(items []Item) Summary {
	applies := p.AppliesForOrder(items)
	s := Summary{
		TotalQuantity: TotalQuantity(items),
		Applied:       applies,
		Rate:          decimal.Zero,
	}
	if applies {
		s.Rate = p.Rate
	}
	for _, it := range items {
		subtotal, d := p.ComputeLine(it.Quantity, it.UnitPrice, applies)
		s.TotalOriginal += subtotal + d
		s.TotalDiscount += d
		s.TotalFinal += subtotal
	}
	return s
}
