package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
)

// GormRepository persists carts and their items.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
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

// FindByID loads a cart with items by primary key.
func (r *GormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&cart, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByUser loads the user's cart with items.
func (r *GormRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindBySession loads the anonymous cart tied to the session token.
func (r *GormRepository) FindBySession(ctx context.Context, sessionCartID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("session_cart_id = ?", sessionCartID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByIDForUpdate reloads the cart under a row lock so concurrent mutations
// of the same cart serialize.
func (r *GormRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cart, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new cart.
func (r *GormRepository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Claim attaches a guest cart to a user and rotates its session token so the
// browser token can back a fresh guest cart afterwards.
func (r *GormRepository) Claim(ctx context.Context, cartID, userID uuid.UUID, sessionCartID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"user_id":         userID,
			"session_cart_id": sessionCartID,
		}).Error
}

// UpdatePrices saves the derived price columns.
func (r *GormRepository) UpdatePrices(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]any{
			"items_price":    cart.ItemsPrice,
			"shipping_price": cart.ShippingPrice,
			"tax_price":      cart.TaxPrice,
			"total_price":    cart.TotalPrice,
		}).Error
}

// UpsertItem inserts the line or, on (cart_id, product_id) conflict, replaces
// its qty and price snapshot.
func (r *GormRepository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"qty", "price", "name", "slug", "image", "updated_at"}),
		}).
		Create(item).Error
}

// DeleteItem removes one product line from the cart.
func (r *GormRepository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{}).Error
}

// ListItems returns items belonging to a cart.
func (r *GormRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Clear removes every line and zeroes the derived prices. Used when a cart
// is frozen into an order.
func (r *GormRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"items_price":    decimal.Zero,
			"shipping_price": decimal.Zero,
			"tax_price":      decimal.Zero,
			"total_price":    decimal.Zero,
		}).Error
}

// Delete removes the cart; items cascade.
func (r *GormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Cart{}, "id = ?", id).Error
}
