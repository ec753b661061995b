package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry listed by a seller.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Category    string          `json:"category" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	Thumbnail   string          `json:"thumbnail" db:"thumbnail"`
	SellerID    string          `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// AvailableStock never reports less than zero.
func (p *Product) AvailableStock() int {
	if p.Stock < 0 {
		return 0
	}
	return p.Stock
}

// ProductInput carries the fields a seller supplies when creating a product.
type ProductInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Thumbnail   string           `json:"thumbnail"`
}

// ProductPatch carries optional fields for a partial update.
type ProductPatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Thumbnail   *string          `json:"thumbnail"`
}
