// Package engine merges add/update/remove requests into a cart.
package engine

import (
	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/fjod/go_cart/marketplace/internal/pricing"
)

// Outcome describes what UpsertLineItem did to the cart.
type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeUpdated Outcome = "updated"
	OutcomeRemoved Outcome = "removed"
	OutcomeNoop    Outcome = "noop"
)

type Engine struct {
	policy pricing.Policy
}

func New(policy pricing.Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the pricing rules the engine applies.
func (e *Engine) Policy() pricing.Policy {
	return e.policy
}

// NewCart returns a transient cart for userID with no items.
func (e *Engine) NewCart(userID string) *domain.Cart {
	return &domain.Cart{
		UserID:       userID,
		Items:        []domain.LineItem{},
		CostEstimate: e.policy.Empty(),
	}
}

// UpsertLineItem sets the quantity of product in cart to requestedQuantity,
// clamped to the product's stock. A quantity of zero removes the item. A nil
// cart is replaced by a fresh one for userID. The returned cart is a new value
// with a recomputed cost estimate; cart itself is left untouched.
func (e *Engine) UpsertLineItem(
	userID string,
	cart *domain.Cart,
	product *domain.Product,
	requestedQuantity int,
	discountCode string,
) (*domain.Cart, Outcome, error) {
	if product == nil {
		return nil, OutcomeNoop, domain.ErrProductNotFound
	}
	if requestedQuantity < 0 {
		return nil, OutcomeNoop, domain.NewValidationError("quantity", "must not be negative")
	}

	var next *domain.Cart
	if cart == nil {
		next = e.NewCart(userID)
	} else {
		next = cart.Clone()
	}

	quantity := min(requestedQuantity, product.AvailableStock())
	idx := next.FindItem(product.ID)

	var outcome Outcome
	switch {
	case idx >= 0 && quantity == 0:
		next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		outcome = OutcomeRemoved
	case idx >= 0:
		next.Items[idx] = snapshot(product, quantity)
		outcome = OutcomeUpdated
	case quantity > 0:
		next.Items = append(next.Items, snapshot(product, quantity))
		outcome = OutcomeAdded
	default:
		outcome = OutcomeNoop
	}

	next.CostEstimate = e.policy.Estimate(next.Items, discountCode, next.CostEstimate)
	return next, outcome, nil
}

func snapshot(product *domain.Product, quantity int) domain.LineItem {
	return domain.LineItem{
		ProductID:       product.ID,
		Quantity:        quantity,
		SellerID:        product.SellerID,
		PriceAtCheckout: product.Price,
	}
}
