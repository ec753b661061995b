package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/marketplace/internal/catalog"
	"github.com/fjod/go_cart/marketplace/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const pricePlaces = 2

type ProductService struct {
	repo   catalog.RepoInterface
	logger *zap.Logger
}

func NewProductService(repo catalog.RepoInterface, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{repo: repo, logger: logger}
}

// Create lists a new product owned by sellerID.
func (s *ProductService) Create(ctx context.Context, sellerID string, in domain.ProductInput) (*domain.Product, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.NewValidationError("title", "is required")
	}
	if in.Price == nil {
		return nil, domain.NewValidationError("price", "is required")
	}
	if err := validatePrice(*in.Price); err != nil {
		return nil, err
	}
	if in.Stock == nil {
		return nil, domain.NewValidationError("stock", "is required")
	}
	if *in.Stock < 0 {
		return nil, domain.NewValidationError("stock", "must not be negative")
	}

	p := &domain.Product{
		Title:       title,
		Description: in.Description,
		Category:    in.Category,
		Price:       *in.Price,
		Stock:       *in.Stock,
		Thumbnail:   in.Thumbnail,
		SellerID:    sellerID,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, storeError("create product", err)
	}

	s.logger.Info("product created", zap.Int64("product_id", p.ID), zap.String("seller_id", sellerID))
	return p, nil
}

func (s *ProductService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.GetAllProducts(ctx)
	if err != nil {
		return nil, storeError("list products", err)
	}
	return nonNil(products), nil
}

func (s *ProductService) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	products, err := s.repo.GetProductsBySeller(ctx, sellerID)
	if err != nil {
		return nil, storeError("list seller products", err)
	}
	return nonNil(products), nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storeError("get product", err)
	}
	return p, nil
}

// GetProduct lets the cart service resolve products through this service.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.Get(ctx, id)
}

// Update applies patch to the product. Only the seller who created it may
// change it.
func (s *ProductService) Update(ctx context.Context, callerID string, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	p, err := s.owned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.NewValidationError("title", "must not be empty")
		}
		p.Title = title
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return nil, domain.NewValidationError("stock", "must not be negative")
		}
		p.Stock = *patch.Stock
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Thumbnail != nil {
		p.Thumbnail = *patch.Thumbnail
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, storeError("update product", err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, callerID string, id int64) error {
	if _, err := s.owned(ctx, callerID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return storeError("delete product", err)
	}
	s.logger.Info("product deleted", zap.Int64("product_id", id), zap.String("seller_id", callerID))
	return nil
}

func (s *ProductService) owned(ctx context.Context, callerID string, id int64) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storeError("get product", err)
	}
	if p.SellerID != callerID {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

// validatePrice accepts non-negative amounts in whole cents. Trailing zeros
// such as 249.90 are fine.
func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return domain.NewValidationError("price", "must not be negative")
	}
	if !price.Equal(price.Round(pricePlaces)) {
		return domain.NewValidationError("price", fmt.Sprintf("must have at most %d decimal places", pricePlaces))
	}
	return nil
}

// storeError passes not-found through and marks everything else as a
// persistence failure.
func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrProductNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

func nonNil(products []*domain.Product) []*domain.Product {
	if products == nil {
		return []*domain.Product{}
	}
	return products
}
