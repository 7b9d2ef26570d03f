package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
)

// ReviewDTO is the review shape returned by the API. Only the reviewer's
// display name rides along, not the full account.
type ReviewDTO struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	ProductID          uuid.UUID `json:"product_id"`
	UserName           string    `json:"user_name,omitempty"`
	Rating             int       `json:"rating"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func FromModel(r *models.Review) *ReviewDTO {
	if r == nil {
		return nil
	}

	dto := &ReviewDTO{
		ID:                 r.ID,
		UserID:             r.UserID,
		ProductID:          r.ProductID,
		Rating:             r.Rating,
		Title:              r.Title,
		Description:        r.Description,
		IsVerifiedPurchase: r.IsVerifiedPurchase,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.User != nil {
		dto.UserName = r.User.Name
	}
	return dto
}

func FromModels(list []models.Review) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
