package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the single cart document owned by a user.
type Cart struct {
	ID           string       `json:"id,omitempty"`
	UserID       string       `json:"user"`
	Items        []LineItem   `json:"items"`
	CostEstimate CostEstimate `json:"costEstimate"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// LineItem is one product entry in a cart. Seller and PriceAtCheckout are
// snapshots copied from the product the last time the item was touched.
type LineItem struct {
	ProductID       int64           `json:"product"`
	Quantity        int             `json:"quantity"`
	SellerID        string          `json:"seller"`
	PriceAtCheckout decimal.Decimal `json:"priceAtCheckout"`
}

// CostEstimate is the derived pricing breakdown of a cart.
type CostEstimate struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingValue decimal.Decimal `json:"shippingValue"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	DiscountCode  string          `json:"discountCode,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
}

// LineTotal returns quantity * priceAtCheckout.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.PriceAtCheckout.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// FindItem returns the index of the line item for productID, or -1.
func (c *Cart) FindItem(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the cart so callers can derive a new value
// without touching the original.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]LineItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
