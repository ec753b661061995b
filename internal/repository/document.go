package repository

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// cartDocument is the stored shape of a cart. Money is kept as Decimal128 so
// amounts survive the round trip exactly.
type cartDocument struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	UserID       string               `bson:"user_id"`
	Items        []lineItemDocument   `bson:"items"`
	CostEstimate costEstimateDocument `bson:"cost_estimate"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

type lineItemDocument struct {
	ProductID       int64                `bson:"product_id"`
	Quantity        int                  `bson:"quantity"`
	SellerID        string               `bson:"seller_id"`
	PriceAtCheckout primitive.Decimal128 `bson:"price_at_checkout"`
}

type costEstimateDocument struct {
	Subtotal      primitive.Decimal128 `bson:"subtotal"`
	ShippingValue primitive.Decimal128 `bson:"shipping_value"`
	DiscountValue primitive.Decimal128 `bson:"discount_value"`
	DiscountCode  string               `bson:"discount_code,omitempty"`
	Total         primitive.Decimal128 `bson:"total"`
	Currency      string               `bson:"currency"`
}

func toDocument(c *domain.Cart) (*cartDocument, error) {
	doc := &cartDocument{
		UserID:    c.UserID,
		Items:     make([]lineItemDocument, 0, len(c.Items)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ID != "" {
		id, err := primitive.ObjectIDFromHex(c.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid cart id %q: %w", c.ID, err)
		}
		doc.ID = id
	}

	for _, item := range c.Items {
		price, err := toDecimal128(item.PriceAtCheckout)
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, lineItemDocument{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			SellerID:        item.SellerID,
			PriceAtCheckout: price,
		})
	}

	est := c.CostEstimate
	amounts := []*primitive.Decimal128{
		&doc.CostEstimate.Subtotal,
		&doc.CostEstimate.ShippingValue,
		&doc.CostEstimate.DiscountValue,
		&doc.CostEstimate.Total,
	}
	for i, v := range []decimal.Decimal{est.Subtotal, est.ShippingValue, est.DiscountValue, est.Total} {
		d, err := toDecimal128(v)
		if err != nil {
			return nil, err
		}
		*amounts[i] = d
	}
	doc.CostEstimate.DiscountCode = est.DiscountCode
	doc.CostEstimate.Currency = est.Currency

	return doc, nil
}

func fromDocument(doc *cartDocument) (*domain.Cart, error) {
	cart := &domain.Cart{
		UserID:    doc.UserID,
		Items:     make([]domain.LineItem, 0, len(doc.Items)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if !doc.ID.IsZero() {
		cart.ID = doc.ID.Hex()
	}

	for _, item := range doc.Items {
		price, err := fromDecimal128(item.PriceAtCheckout)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, domain.LineItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			SellerID:        item.SellerID,
			PriceAtCheckout: price,
		})
	}

	var err error
	est := &cart.CostEstimate
	if est.Subtotal, err = fromDecimal128(doc.CostEstimate.Subtotal); err != nil {
		return nil, err
	}
	if est.ShippingValue, err = fromDecimal128(doc.CostEstimate.ShippingValue); err != nil {
		return nil, err
	}
	if est.DiscountValue, err = fromDecimal128(doc.CostEstimate.DiscountValue); err != nil {
		return nil, err
	}
	if est.Total, err = fromDecimal128(doc.CostEstimate.Total); err != nil {
		return nil, err
	}
	est.DiscountCode = doc.CostEstimate.DiscountCode
	est.Currency = doc.CostEstimate.Currency

	return cart, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount %s: %w", v, err)
	}
	return d, nil
}
