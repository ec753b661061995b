package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/marketplace/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository stores at most one cart document per user.
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
}
