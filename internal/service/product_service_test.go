package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/marketplace/internal/catalog"
	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProductService(t *testing.T) *ProductService {
	repo, err := catalog.NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })

	return NewProductService(repo, nil)
}

func ptr[T any](v T) *T { return &v }

func validInput() domain.ProductInput {
	return domain.ProductInput{
		Title:     "Desk Lamp",
		Category:  "home",
		Price:     ptr(decimal.RequireFromString("249.90")),
		Stock:     ptr(7),
		Thumbnail: "https://cdn.example.com/lamp.png",
	}
}

type failingRepo struct {
	catalog.RepoInterface
	err error
}

func (f failingRepo) GetAllProducts(context.Context) ([]*domain.Product, error) { return nil, f.err }

func (f failingRepo) CreateProduct(context.Context, *domain.Product) error { return f.err }

func TestProductCreate_Success(t *testing.T) {
	svc := setupProductService(t)

	p, err := svc.Create(context.Background(), "seller-1", validInput())

	require.NoError(t, err)
	assert.Positive(t, p.ID)
	assert.Equal(t, "seller-1", p.SellerID)
	assert.Equal(t, 7, p.Stock)

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", got.Title)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("249.9")))
}

func TestProductCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(in *domain.ProductInput)
		field string
	}{
		{"missing title", func(in *domain.ProductInput) { in.Title = "  " }, "title"},
		{"missing price", func(in *domain.ProductInput) { in.Price = nil }, "price"},
		{"negative price", func(in *domain.ProductInput) { in.Price = ptr(decimal.NewFromInt(-1)) }, "price"},
		{"sub-cent price", func(in *domain.ProductInput) { in.Price = ptr(decimal.RequireFromString("19.999")) }, "price"},
		{"price beyond storable digits", func(in *domain.ProductInput) {
			in.Price = ptr(decimal.RequireFromString("0.1234567890123456789012345678901234567"))
		}, "price"},
		{"missing stock", func(in *domain.ProductInput) { in.Stock = nil }, "stock"},
		{"negative stock", func(in *domain.ProductInput) { in.Stock = ptr(-3) }, "stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setupProductService(t)
			in := validInput()
			tt.edit(&in)

			_, err := svc.Create(context.Background(), "seller-1", in)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestProductCreate_ZeroPriceAndStockAllowed(t *testing.T) {
	svc := setupProductService(t)
	in := validInput()
	in.Price = ptr(decimal.Zero)
	in.Stock = ptr(0)

	_, err := svc.Create(context.Background(), "seller-1", in)

	assert.NoError(t, err)
}

func TestProductList_EmptyIsNotNil(t *testing.T) {
	svc := setupProductService(t)

	products, err := svc.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestProductListBySeller(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "seller-1", validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "seller-2", validInput())
	require.NoError(t, err)

	products, err := svc.ListBySeller(ctx, "seller-2")

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "seller-2", products[0].SellerID)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProductGet_NotFound(t *testing.T) {
	svc := setupProductService(t)

	_, err := svc.Get(context.Background(), 404)

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}

func TestProductUpdate_Owner(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "seller-1", validInput())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "seller-1", p.ID, domain.ProductPatch{
		Price: ptr(decimal.RequireFromString("199")),
		Stock: ptr(0),
	})

	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(199)))
	assert.Equal(t, 0, updated.Stock)
	assert.Equal(t, "Desk Lamp", updated.Title)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestProductUpdate_NotOwner(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "seller-1", validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, "seller-2", p.ID, domain.ProductPatch{Title: ptr("Stolen")})

	assert.ErrorIs(t, err, domain.ErrForbidden)
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", got.Title)
}

func TestProductUpdate_Validation(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "seller-1", validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, "seller-1", p.ID, domain.ProductPatch{Stock: ptr(-1)})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Update(ctx, "seller-1", p.ID, domain.ProductPatch{Title: ptr("")})
	assert.True(t, domain.IsValidation(err))
}

func TestProductUpdate_RejectsSubCentPrice(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "seller-1", validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, "seller-1", p.ID, domain.ProductPatch{Price: ptr(decimal.RequireFromString("10.005"))})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "price", verr.Field)
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("249.90")))
}

func TestProductUpdate_NotFound(t *testing.T) {
	svc := setupProductService(t)

	_, err := svc.Update(context.Background(), "seller-1", 12, domain.ProductPatch{})

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductDelete(t *testing.T) {
	svc := setupProductService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "seller-1", validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "seller-2", p.ID), domain.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "seller-1", p.ID))

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductService_StoreFailureIsPersistence(t *testing.T) {
	svc := NewProductService(failingRepo{err: errors.New("database is locked")}, nil)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = svc.Create(context.Background(), "seller-1", validInput())
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorContains(t, err, "database is locked")
}
