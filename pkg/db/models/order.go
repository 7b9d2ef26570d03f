package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/pkg/enums"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// Order freezes a cart at checkout: items, address, and price breakdown
// are snapshots that no longer track the catalog or the cart.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	ShippingAddress types.Address        `gorm:"column:shipping_address;type:jsonb;not null"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null"`
	PaymentResult   *types.PaymentResult `gorm:"column:payment_result;type:jsonb"`
	ItemsPrice      decimal.Decimal      `gorm:"column:items_price;type:numeric(12,2);not null"`
	ShippingPrice   decimal.Decimal      `gorm:"column:shipping_price;type:numeric(12,2);not null"`
	TaxPrice        decimal.Decimal      `gorm:"column:tax_price;type:numeric(12,2);not null"`
	TotalPrice      decimal.Decimal      `gorm:"column:total_price;type:numeric(12,2);not null"`
	IsPaid          bool                 `gorm:"column:is_paid;not null;default:false"`
	PaidAt          *time.Time           `gorm:"column:paid_at"`
	IsDelivered     bool                 `gorm:"column:is_delivered;not null;default:false"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	User            *User                `gorm:"foreignKey:UserID"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
