package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a user's single opinion of a product. One row per (user, product);
// submitting again overwrites the previous rating and text.
type Review struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_reviews_user_product"`
	ProductID          uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_reviews_user_product"`
	Rating             int       `gorm:"column:rating;not null"`
	Title              string    `gorm:"column:title;not null"`
	Description        string    `gorm:"column:description;not null"`
	IsVerifiedPurchase bool      `gorm:"column:is_verified_purchase;not null;default:true"`
	User               *User     `gorm:"foreignKey:UserID"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
