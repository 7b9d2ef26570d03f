package reviews

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
)

// RatingStats aggregates a product's review figures.
type RatingStats struct {
	Average decimal.Decimal `gorm:"column:average"`
	Count   int             `gorm:"column:count"`
}

// GormRepository persists product reviews.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a review repository bound to the provided DB.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) *GormRepository {
	if tx == nil {
		return r
	}
	return &GormRepository{db: tx}
}

// Upsert inserts the review or, on (user_id, product_id) conflict, replaces
// the previous rating and text.
func (r *GormRepository) Upsert(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"rating", "title", "description", "is_verified_purchase", "updated_at",
			}),
		}).
		Create(review).Error
}

// FindByUserAndProduct returns the user's review of the product, if any.
func (r *GormRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ListByProduct pages through a product's reviews, newest first, with the
// reviewer preloaded for display.
func (r *GormRepository) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, int64, error) {
	params = params.Normalize()

	query := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Review
	if err := query.
		Preload("User").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Stats computes the product's average rating and review count.
func (r *GormRepository) Stats(ctx context.Context, productID uuid.UUID) (*RatingStats, error) {
	var stats RatingStats
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// HasPaidPurchase reports whether the user has a paid order containing the
// product, which marks the review as a verified purchase.
func (r *GormRepository) HasPaidPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.is_paid = ? AND order_items.product_id = ?", userID, true, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
