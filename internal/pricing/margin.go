// Package pricing holds the line item arithmetic shared by quotes and
// invoices: totals, margin and the minimum margin policy.
package pricing

import "github.com/shopspring/decimal"

// MinimumMargin is the lowest acceptable margin percentage for a quote.
const MinimumMargin = 30.0

// MaxAmount is the largest money value the NUMERIC(14,2) columns hold.
const MaxAmount = 999999999999.99

// LineItem is one priced row. Cost and Price are per unit; Cost is internal
// and never shown to customers.
type LineItem struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// Total is the customer facing amount of the line.
func (l LineItem) Total() float64 {
	return l.Quantity * l.Price
}

// TotalCost is the internal cost of the line.
func (l LineItem) TotalCost() float64 {
	return l.Quantity * l.Cost
}

// Summary aggregates a set of line items.
type Summary struct {
	TotalCost  float64
	TotalPrice float64
	Margin     float64
}

// Summarize computes cost, price and margin percentage. An empty or zero
// priced set has a margin of 0.
func Summarize(items []LineItem) Summary {
	var s Summary
	for _, item := range items {
		s.TotalCost += item.TotalCost()
		s.TotalPrice += item.Total()
	}
	s.Margin = Margin(s.TotalCost, s.TotalPrice)
	return s
}

// Margin returns (price - cost) / price * 100, or 0 when price is 0.
func Margin(totalCost, totalPrice float64) float64 {
	if totalPrice == 0 {
		return 0
	}
	price := decimal.NewFromFloat(totalPrice)
	return price.Sub(decimal.NewFromFloat(totalCost)).Div(price).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// IsBelowMinimumMargin reports whether margin fails the policy.
func IsBelowMinimumMargin(margin float64) bool {
	return margin < MinimumMargin
}

// Round2 rounds half away from zero to two decimals for display and storage.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// WithinMaxAmount reports whether v fits the money columns.
func WithinMaxAmount(v float64) bool {
	return v <= MaxAmount
}

// IsWholeCents reports whether v has at most two decimal places.
func IsWholeCents(v float64) bool {
	return decimal.NewFromFloat(v).Exponent() >= -2
}

// CloneItems returns an independent copy of items.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
