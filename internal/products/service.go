package products

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/pkg/config"
	dbpkg "github.com/davidruizdev/storefront-backend/pkg/db"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Service exposes catalog read paths plus admin product management.
type Service interface {
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Latest(ctx context.Context) ([]models.Product, error)
	Featured(ctx context.Context) ([]models.Product, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListResult is one catalog page plus its pagination metadata.
type ListResult struct {
	Products []models.Product `json:"products"`
	Page     pagination.Page  `json:"pagination"`
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Slug        string
	Category    string
	Brand       string
	Description string
	Images      []string
	Price       decimal.Decimal
	Stock       int
	IsFeatured  bool
	Banner      *string
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string
	Slug        *string
	Category    *string
	Brand       *string
	Description *string
	Images      *[]string
	Price       *decimal.Decimal
	Stock       *int
	IsFeatured  *bool
	Banner      *string
}

type service struct {
	repo    *Repository
	catalog config.CatalogConfig
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, catalog config.CatalogConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if catalog.LatestLimit <= 0 {
		catalog.LatestLimit = 4
	}
	if catalog.FeaturedLimit <= 0 {
		catalog.FeaturedLimit = 4
	}
	if catalog.PageSize <= 0 {
		catalog.PageSize = pagination.DefaultLimit
	}
	return &service{repo: repo, catalog: catalog}, nil
}

// GetBySlug loads one product for the detail page.
func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	product, err := s.repo.FindBySlug(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// GetByID loads one product by primary key.
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// List returns one filtered catalog page.
func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Filters.PriceMin != nil && input.Filters.PriceMax != nil &&
		input.Filters.PriceMin.GreaterThan(*input.Filters.PriceMax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_min cannot exceed price_max")
	}
	if input.Filters.RatingMin != nil && (*input.Filters.RatingMin < 1 || *input.Filters.RatingMin > 5) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating filter must be between 1 and 5")
	}
	if input.Pagination.Limit <= 0 {
		input.Pagination.Limit = s.catalog.PageSize
	}

	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &ListResult{
		Products: rows,
		Page:     pagination.NewPage(input.Pagination, total),
	}, nil
}

// Latest returns the newest arrivals for the homepage.
func (s *service) Latest(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.Latest(ctx, s.catalog.LatestLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list latest products")
	}
	return rows, nil
}

// Featured returns banner products for the homepage carousel.
func (s *service) Featured(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.Featured(ctx, s.catalog.FeaturedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured products")
	}
	return rows, nil
}

// Categories returns distinct categories with counts for the filter sidebar.
func (s *service) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

// Create inserts a new catalog product.
func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        input.Name,
		Slug:        input.Slug,
		Category:    input.Category,
		Brand:       input.Brand,
		Description: input.Description,
		Images:      input.Images,
		Price:       input.Price,
		Stock:       input.Stock,
		IsFeatured:  input.IsFeatured,
		Banner:      input.Banner,
	}

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_products_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	return created, nil
}

// Update applies the provided fields to an existing product.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(product, input); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_products_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return updated, nil
}

// Delete removes the product from the catalog.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete product")
	}
	return nil
}

func validateCreate(input *CreateProductInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Brand = strings.TrimSpace(input.Brand)
	input.Category = strings.TrimSpace(input.Category)
	input.Description = strings.TrimSpace(input.Description)

	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Category == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if input.Brand == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "brand is required")
	}
	if input.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	input.Slug = strings.TrimSpace(input.Slug)
	if input.Slug == "" {
		input.Slug = Slugify(input.Name)
	}
	if input.Slug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	return nil
}

func applyUpdate(product *models.Product, input UpdateProductInput) error {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		product.Name = trimmed
	}
	if input.Slug != nil {
		trimmed := strings.TrimSpace(*input.Slug)
		if trimmed == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be empty")
		}
		product.Slug = trimmed
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Brand != nil {
		product.Brand = strings.TrimSpace(*input.Brand)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.Images != nil {
		product.Images = *input.Images
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		product.Price = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.IsFeatured != nil {
		product.IsFeatured = *input.IsFeatured
	}
	if input.Banner != nil {
		product.Banner = input.Banner
	}
	return nil
}

// Slugify lowers the name and collapses non-alphanumerics into hyphens.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
