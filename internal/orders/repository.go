package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// MonthlySales is one row of the admin sales chart.
type MonthlySales struct {
	Month      string          `json:"month" gorm:"column:month"`
	TotalSales decimal.Decimal `json:"total_sales" gorm:"column:total_sales"`
}

// GormRepository persists orders and their frozen line items.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &GormRepository{db: tx}
}

// Create inserts the order together with its item snapshots.
func (r *GormRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID loads an order with items and the owning user.
func (r *GormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("User").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate reloads the bare order row under a row lock so payment
// convergence from concurrent providers serializes.
func (r *GormRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListItems returns the frozen lines of an order.
func (r *GormRepository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var rows []models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUser pages through a user's order history, newest first.
func (r *GormRepository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	if err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// List pages through all orders for the back office, newest first.
func (r *GormRepository) List(ctx context.Context, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SetPaid records the provider's capture on the order.
func (r *GormRepository) SetPaid(ctx context.Context, id uuid.UUID, result *types.PaymentResult, paidAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_paid":        true,
			"paid_at":        paidAt,
			"payment_result": result,
		}).Error
}

// SetPaymentResult stores the provider reference before capture completes.
func (r *GormRepository) SetPaymentResult(ctx context.Context, id uuid.UUID, result *types.PaymentResult) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_result", result).Error
}

// SetDelivered flags the order as handed to the customer.
func (r *GormRepository) SetDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_delivered": true,
			"delivered_at": deliveredAt,
		}).Error
}

// Delete removes the order; items cascade.
func (r *GormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id).Error
}

// DecrementStock reduces the product's stock by the ordered quantity and
// returns the level it landed on. Stock may go negative; callers decide what
// to do about it.
func (r *GormRepository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty)).Error
	if err != nil {
		return 0, err
	}
	var product models.Product
	if err := r.db.WithContext(ctx).
		Select("stock").
		First(&product, "id = ?", productID).Error; err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// CountOrders returns the total number of orders placed.
func (r *GormRepository) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error
	return count, err
}

// CountUsers returns the total number of registered users.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountProducts returns the catalog size.
func (r *GormRepository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

// TotalSales sums order totals across the whole store.
func (r *GormRepository) TotalSales(ctx context.Context) (string, error) {
	var total string
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&total).Error
	return total, err
}

// SalesByMonth groups order totals into MM/YY buckets for the sales chart.
func (r *GormRepository) SalesByMonth(ctx context.Context) ([]MonthlySales, error) {
	var rows []MonthlySales
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("to_char(created_at, 'MM/YY') AS month, SUM(total_price) AS total_sales").
		Group("to_char(created_at, 'MM/YY')").
		Order("MIN(created_at)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Latest returns the most recent orders with the purchaser preloaded.
func (r *GormRepository) Latest(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
