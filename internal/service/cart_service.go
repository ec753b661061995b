package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/cache"
	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/fjod/go_cart/marketplace/internal/engine"
	"github.com/fjod/go_cart/marketplace/internal/events"
	"github.com/fjod/go_cart/marketplace/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProductCatalog resolves the product a cart request refers to.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// OperationRecorder counts cart upserts by outcome.
type OperationRecorder interface {
	CartOperation(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) CartOperation(string) {}

type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	catalog   ProductCatalog
	engine    *engine.Engine
	publisher events.Publisher
	recorder  OperationRecorder
	logger    *zap.Logger
	sfg       singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	cache cache.CartCache,
	catalog ProductCatalog,
	eng *engine.Engine,
	publisher events.Publisher,
	recorder OperationRecorder,
	logger *zap.Logger,
) *CartService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		repo:      repo,
		cache:     cache,
		catalog:   catalog,
		engine:    eng,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
	}
}

// GetCart returns the user's cart, or a transient empty cart when none is
// stored. The empty cart is never written to the store or the cache.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return s.engine.NewCart(userID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load cart: %w", domain.ErrPersistence, err)
		}

		go s.fillCache(userID, cart.Clone())

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// UpsertItem sets productID's quantity in the user's cart and returns the
// recomputed cart. Quantity zero removes the item.
func (s *CartService) UpsertItem(
	ctx context.Context,
	userID string,
	productID int64,
	quantity int,
	discountCode string,
) (*domain.Cart, error) {
	if productID <= 0 {
		return nil, domain.NewValidationError("productId", "must be a positive id")
	}
	if quantity < 0 {
		return nil, domain.NewValidationError("quantity", "must not be negative")
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load product: %w", domain.ErrPersistence, err)
	}

	// Writes read the store directly so a stale cache entry cannot be saved back.
	stored, err := s.repo.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, fmt.Errorf("%w: load cart: %w", domain.ErrPersistence, err)
	}

	next, outcome, err := s.engine.UpsertLineItem(userID, stored, product, quantity, discountCode)
	if err != nil {
		return nil, err
	}
	s.recorder.CartOperation(string(outcome))

	if stored == nil && next.IsEmpty() {
		return next, nil
	}

	if err := s.repo.SaveCart(ctx, next); err != nil {
		s.logger.Error("save cart failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: save cart: %w", domain.ErrPersistence, err)
	}

	s.invalidateCache(userID)

	if err := s.publisher.PublishCartUpdated(ctx, next); err != nil {
		s.logger.Warn("publish cart event failed", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Debug("cart upserted",
		zap.String("user_id", userID),
		zap.Int64("product_id", productID),
		zap.String("outcome", string(outcome)),
	)
	return next, nil
}

func (s *CartService) fillCache(userID string, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, userID, cart); err != nil {
		s.logger.Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
