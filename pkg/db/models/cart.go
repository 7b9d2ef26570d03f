package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart holds a shopper's pending items plus the derived price breakdown.
// Anonymous carts carry only a session token; on sign-in the user's own
// cart takes precedence over the session one.
type Cart struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        *uuid.UUID      `gorm:"column:user_id;type:uuid;uniqueIndex"`
	SessionCartID string          `gorm:"column:session_cart_id;type:text;not null;uniqueIndex"`
	ItemsPrice    decimal.Decimal `gorm:"column:items_price;type:numeric(12,2);not null;default:0"`
	ShippingPrice decimal.Decimal `gorm:"column:shipping_price;type:numeric(12,2);not null;default:0"`
	TaxPrice      decimal.Decimal `gorm:"column:tax_price;type:numeric(12,2);not null;default:0"`
	TotalPrice    decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	Items         []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
