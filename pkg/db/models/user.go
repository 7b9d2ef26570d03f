package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidruizdev/storefront-backend/pkg/enums"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// User represents the canonical identity entity.
type User struct {
	ID            uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string               `gorm:"column:name;not null"`
	Email         string               `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash  string               `gorm:"column:password_hash;not null"`
	Role          enums.UserRole       `gorm:"column:role;type:text;not null;default:'user'"`
	Address       *types.Address       `gorm:"column:address;type:jsonb"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method;type:text"`
	IsActive      bool                 `gorm:"column:is_active;not null;default:true"`
	LastLoginAt   *time.Time           `gorm:"column:last_login_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
