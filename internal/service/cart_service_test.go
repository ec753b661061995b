package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/cache"
	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/fjod/go_cart/marketplace/internal/engine"
	"github.com/fjod/go_cart/marketplace/internal/pricing"
	"github.com/fjod/go_cart/marketplace/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m       sync.RWMutex
	cart    *domain.Cart
	getErr  error
	saveErr error
	gets    int
	saves   int
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.cart.Clone(), nil
}

func (m *mockRepository) SaveCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.cart = c.Clone()
	return nil
}

func (m *mockRepository) saved() (*domain.Cart, int) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart, m.saves
}

type mockCache struct {
	m       sync.RWMutex
	cart    *domain.Cart
	err     error
	deletes int
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	m.cart = nil
	return nil
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

type mockCatalog struct {
	products map[int64]*domain.Product
	err      error
	calls    int
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

type mockPublisher struct {
	published []*domain.Cart
	err       error
}

func (m *mockPublisher) PublishCartUpdated(_ context.Context, cart *domain.Cart) error {
	m.published = append(m.published, cart)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

type mockRecorder struct {
	outcomes []string
}

func (m *mockRecorder) CartOperation(outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

type fixture struct {
	repo      *mockRepository
	cache     *mockCache
	catalog   *mockCatalog
	publisher *mockPublisher
	recorder  *mockRecorder
	sut       *CartService
}

func newFixture() *fixture {
	f := &fixture{
		repo:  &mockRepository{},
		cache: &mockCache{},
		catalog: &mockCatalog{products: map[int64]*domain.Product{
			1: {ID: 1, Price: decimal.RequireFromString("100"), Stock: 5, SellerID: "seller-1"},
			2: {ID: 2, Price: decimal.RequireFromString("2500"), Stock: 10, SellerID: "seller-2"},
		}},
		publisher: &mockPublisher{},
		recorder:  &mockRecorder{},
	}
	f.sut = NewCartService(f.repo, f.cache, f.catalog, engine.New(pricing.DefaultPolicy()), f.publisher, f.recorder, nil)
	return f
}

func storedCart(userID string) *domain.Cart {
	return &domain.Cart{
		ID:     "65f000000000000000000001",
		UserID: userID,
		Items: []domain.LineItem{
			{ProductID: 1, Quantity: 2, SellerID: "seller-1", PriceAtCheckout: decimal.RequireFromString("100")},
		},
		CostEstimate: pricing.DefaultPolicy().Estimate([]domain.LineItem{
			{ProductID: 1, Quantity: 2, PriceAtCheckout: decimal.RequireFromString("100")},
		}, "", domain.CostEstimate{}),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestGetCart_Success(t *testing.T) {
	f := newFixture()
	f.repo.cart = storedCart("123")

	ret, err := f.sut.GetCart(context.Background(), "123")
	require.NoError(t, err)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, int64(1), ret.Items[0].ProductID)
	assert.Equal(t, 2, ret.Items[0].Quantity)

	require.Eventually(t, func() bool {
		return f.cache.getCart() != nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")
}

func TestGetCart_RepoError(t *testing.T) {
	f := newFixture()
	f.repo.getErr = fmt.Errorf("database error")

	ret, err := f.sut.GetCart(context.Background(), "123")

	require.ErrorContains(t, err, "database error")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Nil(t, ret)
	assert.Nil(t, f.cache.getCart())
}

func TestGetCart_CacheHit(t *testing.T) {
	f := newFixture()
	f.cache.cart = storedCart("123")
	f.repo.getErr = errors.New("repo must not be called")

	ret, err := f.sut.GetCart(context.Background(), "123")

	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
	assert.Equal(t, 0, f.repo.gets)
}

func TestGetCart_CacheErrorFallsBackToStore(t *testing.T) {
	f := newFixture()
	f.cache.err = errors.New("redis down")
	f.repo.cart = storedCart("123")

	ret, err := f.sut.GetCart(context.Background(), "123")

	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
	assert.Equal(t, 1, f.repo.gets)
}

func TestGetCart_CartNotFound_ReturnsTransientEmptyCart(t *testing.T) {
	f := newFixture()

	ret, err := f.sut.GetCart(context.Background(), "123")

	require.NoError(t, err)
	assert.Equal(t, "123", ret.UserID)
	assert.NotNil(t, ret.Items)
	assert.Empty(t, ret.Items)
	assert.Empty(t, ret.ID)
	assert.True(t, ret.CostEstimate.Subtotal.IsZero())
	assert.True(t, ret.CostEstimate.ShippingValue.Equal(decimal.NewFromInt(100)))
	assert.True(t, ret.CostEstimate.Total.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "ZAR", ret.CostEstimate.Currency)

	_, saves := f.repo.saved()
	assert.Equal(t, 0, saves)
	assert.Never(t, func() bool {
		return f.cache.getCart() != nil
	}, 50*time.Millisecond, 10*time.Millisecond, "empty cart must not be cached")
}

func TestUpsertItem_NewCart_AddsItem(t *testing.T) {
	f := newFixture()

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 2, "")
	require.NoError(t, err)

	require.Len(t, ret.Items, 1)
	assert.Equal(t, "123", ret.UserID)
	assert.Equal(t, "seller-1", ret.Items[0].SellerID)
	assert.True(t, ret.CostEstimate.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, ret.CostEstimate.Total.Equal(decimal.NewFromInt(300)))

	saved, saves := f.repo.saved()
	assert.Equal(t, 1, saves)
	assert.Len(t, saved.Items, 1)
	assert.Equal(t, 1, f.cache.deletes)
	assert.Len(t, f.publisher.published, 1)
	assert.Equal(t, []string{"added"}, f.recorder.outcomes)
}

func TestUpsertItem_ClampsToStock(t *testing.T) {
	f := newFixture()

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 50, "")

	require.NoError(t, err)
	assert.Equal(t, 5, ret.Items[0].Quantity)
}

func TestUpsertItem_ExistingCart_UpdatesQuantity(t *testing.T) {
	f := newFixture()
	f.repo.cart = storedCart("123")

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 4, "")

	require.NoError(t, err)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, 4, ret.Items[0].Quantity)
	assert.Equal(t, "65f000000000000000000001", ret.ID)
	assert.Equal(t, []string{"updated"}, f.recorder.outcomes)
}

func TestUpsertItem_ExistingCart_ZeroRemovesAndSaves(t *testing.T) {
	f := newFixture()
	f.repo.cart = storedCart("123")

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 0, "")

	require.NoError(t, err)
	assert.Empty(t, ret.Items)
	assert.True(t, ret.CostEstimate.Total.Equal(decimal.NewFromInt(100)))
	saved, saves := f.repo.saved()
	assert.Equal(t, 1, saves)
	assert.Empty(t, saved.Items)
	assert.Equal(t, []string{"removed"}, f.recorder.outcomes)
}

func TestUpsertItem_NewCartStaysEmpty_NotSaved(t *testing.T) {
	f := newFixture()

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 0, "")

	require.NoError(t, err)
	assert.Empty(t, ret.Items)
	_, saves := f.repo.saved()
	assert.Equal(t, 0, saves)
	assert.Equal(t, 0, f.cache.deletes)
	assert.Empty(t, f.publisher.published)
	assert.Equal(t, []string{"noop"}, f.recorder.outcomes)
}

func TestUpsertItem_AppliesDiscountCode(t *testing.T) {
	f := newFixture()
	f.repo.cart = storedCart("123")

	ret, err := f.sut.UpsertItem(context.Background(), "123", 2, 1, "DIS25")
	require.NoError(t, err)

	// subtotal 200 + 2500 = 2700, discount 30%
	assert.True(t, ret.CostEstimate.Subtotal.Equal(decimal.NewFromInt(2700)))
	assert.True(t, ret.CostEstimate.DiscountValue.Equal(decimal.NewFromInt(810)))
	assert.Equal(t, "DIS25", ret.CostEstimate.DiscountCode)

	// discount carries forward when the next request has no code
	ret, err = f.sut.UpsertItem(context.Background(), "123", 1, 1, "")
	require.NoError(t, err)
	assert.True(t, ret.CostEstimate.DiscountValue.Equal(decimal.NewFromInt(810)))
}

func TestUpsertItem_ReadsStoreNotCache(t *testing.T) {
	f := newFixture()
	stale := storedCart("123")
	stale.Items = append(stale.Items, domain.LineItem{ProductID: 2, Quantity: 1, PriceAtCheckout: decimal.NewFromInt(2500)})
	f.cache.cart = stale
	f.repo.cart = storedCart("123")

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 3, "")

	require.NoError(t, err)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, int64(1), ret.Items[0].ProductID)
	assert.Nil(t, f.cache.getCart(), "cache should be invalidated")
}

func TestUpsertItem_NegativeQuantity(t *testing.T) {
	f := newFixture()

	_, err := f.sut.UpsertItem(context.Background(), "123", 1, -1, "")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity", verr.Field)
	assert.Equal(t, 0, f.catalog.calls)
}

func TestUpsertItem_InvalidProductID(t *testing.T) {
	f := newFixture()

	_, err := f.sut.UpsertItem(context.Background(), "123", 0, 1, "")

	assert.True(t, domain.IsValidation(err))
}

func TestUpsertItem_ProductNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.sut.UpsertItem(context.Background(), "123", 99, 1, "")

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, saves := f.repo.saved()
	assert.Equal(t, 0, saves)
}

// A line item whose product has since left the catalog cannot be removed
// through UpsertItem; the stored cart is left untouched.
func TestUpsertItem_RemoveDelistedProductIsNotFound(t *testing.T) {
	f := newFixture()
	f.repo.cart = storedCart("123")
	delete(f.catalog.products, 1)

	_, err := f.sut.UpsertItem(context.Background(), "123", 1, 0, "")

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	saved, saves := f.repo.saved()
	assert.Equal(t, 0, saves)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, int64(1), saved.Items[0].ProductID)
	assert.Empty(t, f.recorder.outcomes)
}

func TestUpsertItem_CatalogFailure(t *testing.T) {
	f := newFixture()
	f.catalog.err = errors.New("disk I/O error")

	_, err := f.sut.UpsertItem(context.Background(), "123", 1, 1, "")

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestUpsertItem_LoadFailure(t *testing.T) {
	f := newFixture()
	f.repo.getErr = errors.New("connection reset")

	_, err := f.sut.UpsertItem(context.Background(), "123", 1, 1, "")

	assert.ErrorIs(t, err, domain.ErrPersistence)
	_, saves := f.repo.saved()
	assert.Equal(t, 0, saves)
}

func TestUpsertItem_SaveFailure(t *testing.T) {
	f := newFixture()
	f.repo.saveErr = errors.New("write conflict")

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 1, "")

	assert.Nil(t, ret)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, f.repo.saveErr)
	assert.Equal(t, 0, f.cache.deletes)
	assert.Empty(t, f.publisher.published)
}

func TestUpsertItem_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker unavailable")

	ret, err := f.sut.UpsertItem(context.Background(), "123", 1, 1, "")

	require.NoError(t, err)
	assert.Len(t, ret.Items, 1)
	_, saves := f.repo.saved()
	assert.Equal(t, 1, saves)
}
