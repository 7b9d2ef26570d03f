package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
)

var forUpdateClause = clause.Locking{Strength: "UPDATE"}

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads the product by its URL slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDForUpdate loads the product under a row lock inside a transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(forUpdateClause).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List applies filters, sorting, and pagination and returns the rows plus the
// unpaged total.
func (r *Repository) List(ctx context.Context, input ListInput) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	query = applyFilters(query, input.Filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params := input.Pagination.Normalize()
	query = applySort(query, input.Sort).
		Offset(input.Pagination.Offset()).
		Limit(params.Limit)

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func applyFilters(query *gorm.DB, filters ListFilters) *gorm.DB {
	if q := strings.TrimSpace(filters.Query); q != "" {
		query = query.Where("name ILIKE ?", "%"+q+"%")
	}
	if c := strings.TrimSpace(filters.Category); c != "" && !strings.EqualFold(c, "all") {
		query = query.Where("category = ?", c)
	}
	if filters.PriceMin != nil {
		query = query.Where("price >= ?", filters.PriceMin)
	}
	if filters.PriceMax != nil {
		query = query.Where("price <= ?", filters.PriceMax)
	}
	if filters.RatingMin != nil {
		query = query.Where("rating >= ?", *filters.RatingMin)
	}
	return query
}

func applySort(query *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortLowest:
		return query.Order("price ASC")
	case SortHighest:
		return query.Order("price DESC")
	case SortRating:
		return query.Order("rating DESC")
	default:
		return query.Order("created_at DESC")
	}
}

// Latest returns the most recently added products.
func (r *Repository) Latest(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Featured returns banner-carrying featured products for the homepage carousel.
func (r *Repository) Featured(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("is_featured = ? AND banner IS NOT NULL", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Categories returns distinct categories with product counts.
func (r *Repository) Categories(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("category ASC").
		Scan(&rows).Error
	return rows, err
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Update saves the provided product.
func (r *Repository) Update(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes the product; line-item snapshots on past orders keep their data.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

// AdjustStock applies a stock delta to the product row.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", delta)).Error
}

// UpdateRating writes the recomputed review aggregate onto the product row.
func (r *Repository) UpdateRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, numReviews int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"rating":      rating,
			"num_reviews": numReviews,
		}).Error
}
