package products

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  category TEXT NOT NULL,
  brand TEXT NOT NULL,
  description TEXT NOT NULL,
  images TEXT NOT NULL DEFAULT '{}',
  price NUMERIC NOT NULL DEFAULT 0,
  stock INTEGER NOT NULL DEFAULT 0,
  rating NUMERIC NOT NULL DEFAULT 0,
  num_reviews INTEGER NOT NULL DEFAULT 0,
  is_featured INTEGER NOT NULL DEFAULT 0,
  banner TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func mustCreateTestProduct(t *testing.T, db *gorm.DB, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:          uuid.New(),
		Name:        "Test Product",
		Slug:        fmt.Sprintf("test-product-%s", uuid.NewString()),
		Category:    "Mens Shirts",
		Brand:       "Acme",
		Description: "desc",
		Price:       decimal.RequireFromString("25.00"),
		Stock:       10,
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreateTestProduct(t, db, func(p *models.Product) {
			p.Category = "Mens Shirts"
			p.Price = decimal.NewFromInt(int64(10 + i*10))
		})
	}
	mustCreateTestProduct(t, db, func(p *models.Product) {
		p.Category = "Mens Shoes"
		p.Price = decimal.NewFromInt(99)
	})

	rows, total, err := repo.List(ctx, ListInput{
		Filters:    ListFilters{Category: "Mens Shirts"},
		Sort:       SortLowest,
		Pagination: pagination.Params{Page: 1, Limit: 2},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Price.LessThanOrEqual(rows[1].Price))

	rows, total, err = repo.List(ctx, ListInput{
		Filters:    ListFilters{Category: "Mens Shirts"},
		Sort:       SortLowest,
		Pagination: pagination.Params{Page: 2, Limit: 2},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, rows, 1)

	page := pagination.NewPage(pagination.Params{Page: 2, Limit: 2}, total)
	require.Equal(t, 2, page.TotalPages)
}

func TestRepositoryListPriceFilter(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mustCreateTestProduct(t, db, func(p *models.Product) { p.Price = decimal.NewFromInt(5) })
	mid := mustCreateTestProduct(t, db, func(p *models.Product) { p.Price = decimal.NewFromInt(50) })
	mustCreateTestProduct(t, db, func(p *models.Product) { p.Price = decimal.NewFromInt(500) })

	min := decimal.NewFromInt(10)
	max := decimal.NewFromInt(100)
	rows, total, err := repo.List(ctx, ListInput{
		Filters:    ListFilters{PriceMin: &min, PriceMax: &max},
		Pagination: pagination.Params{Page: 1, Limit: 10},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	require.Equal(t, mid.ID, rows[0].ID)
}

func TestRepositoryFeaturedRequiresBanner(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	banner := "/images/banner-1.jpg"
	featured := mustCreateTestProduct(t, db, func(p *models.Product) {
		p.IsFeatured = true
		p.Banner = &banner
	})
	mustCreateTestProduct(t, db, func(p *models.Product) { p.IsFeatured = true })
	mustCreateTestProduct(t, db, nil)

	rows, err := repo.Featured(ctx, 4)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, featured.ID, rows[0].ID)
}

func TestRepositoryAdjustStock(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateTestProduct(t, db, func(p *models.Product) { p.Stock = 10 })

	require.NoError(t, repo.AdjustStock(ctx, product.ID, -3))

	reloaded, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 7, reloaded.Stock)
}

func TestRepositoryCategories(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mustCreateTestProduct(t, db, func(p *models.Product) { p.Category = "Mens Shirts" })
	mustCreateTestProduct(t, db, func(p *models.Product) { p.Category = "Mens Shirts" })
	mustCreateTestProduct(t, db, func(p *models.Product) { p.Category = "Mens Shoes" })

	rows, err := repo.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Mens Shirts", rows[0].Category)
	require.EqualValues(t, 2, rows[0].Count)
}
