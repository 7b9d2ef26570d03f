package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
)

// CartDTO is the cart shape returned by the API, lines included.
type CartDTO struct {
	ID            uuid.UUID       `json:"id"`
	SessionCartID string          `json:"session_cart_id"`
	ItemsPrice    decimal.Decimal `json:"items_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price"`
	TaxPrice      decimal.Decimal `json:"tax_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Items         []CartItemDTO   `json:"items"`
}

// CartItemDTO is one line of the cart with its product snapshot.
type CartItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

func FromModel(c *models.Cart) *CartDTO {
	if c == nil {
		return nil
	}

	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Slug:      item.Slug,
			Image:     item.Image,
			Price:     item.Price,
			Qty:       item.Qty,
		})
	}

	return &CartDTO{
		ID:            c.ID,
		SessionCartID: c.SessionCartID,
		ItemsPrice:    c.ItemsPrice,
		ShippingPrice: c.ShippingPrice,
		TaxPrice:      c.TaxPrice,
		TotalPrice:    c.TotalPrice,
		Items:         items,
	}
}
