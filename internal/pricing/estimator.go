package pricing

import (
	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/shopspring/decimal"
)

const discountPlaces = 2

// Policy holds the pricing rules applied to every cart.
type Policy struct {
	Currency              string
	ShippingBaseline      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	DiscountCode          string
	DiscountRate          decimal.Decimal
}

// DefaultPolicy returns the rules the marketplace ships with: R100 shipping,
// free above R5000, 30% off with code DIS25.
func DefaultPolicy() Policy {
	return Policy{
		Currency:              "ZAR",
		ShippingBaseline:      decimal.NewFromInt(100),
		FreeShippingThreshold: decimal.NewFromInt(5000),
		DiscountCode:          "DIS25",
		DiscountRate:          decimal.RequireFromString("0.3"),
	}
}

// Empty is the estimate of a cart with no items.
func (p Policy) Empty() domain.CostEstimate {
	return domain.CostEstimate{
		Subtotal:      decimal.Zero,
		ShippingValue: p.ShippingBaseline,
		DiscountValue: decimal.Zero,
		Total:         p.ShippingBaseline,
		Currency:      p.Currency,
	}
}

// Estimate computes the cost estimate for items. A discountCode equal to the
// policy code recomputes the discount from the subtotal; any other code keeps
// the discount carried by prior. The discount never exceeds the subtotal, and
// a carried code is dropped once its carried amount reaches zero.
func (p Policy) Estimate(items []domain.LineItem, discountCode string, prior domain.CostEstimate) domain.CostEstimate {
	subtotal := Subtotal(items)

	shipping := p.ShippingBaseline
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	discount := prior.DiscountValue
	appliedCode := prior.DiscountCode
	if p.recognizes(discountCode) {
		discount = subtotal.Mul(p.DiscountRate).Round(discountPlaces)
		appliedCode = discountCode
	}
	discount = clamp(discount, subtotal)
	if discount.IsZero() && !p.recognizes(discountCode) {
		appliedCode = ""
	}

	return domain.CostEstimate{
		Subtotal:      subtotal,
		ShippingValue: shipping,
		DiscountValue: discount,
		DiscountCode:  appliedCode,
		Total:         subtotal.Sub(discount).Add(shipping),
		Currency:      p.Currency,
	}
}

// Subtotal sums quantity * priceAtCheckout over items.
func Subtotal(items []domain.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

func (p Policy) recognizes(code string) bool {
	return p.DiscountCode != "" && code == p.DiscountCode
}

func clamp(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}
