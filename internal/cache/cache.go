package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/marketplace/internal/domain"
)

// CartCache is a read-through copy of stored carts. It is never the source
// of truth; writers invalidate it after saving.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
