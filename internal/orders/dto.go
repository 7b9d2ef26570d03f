package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/internal/users"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// OrderDTO is the order shape returned by the API: frozen lines, address,
// and the price breakdown captured at checkout.
type OrderDTO struct {
	ID              uuid.UUID            `json:"id"`
	UserID          uuid.UUID            `json:"user_id"`
	User            *users.UserDTO       `json:"user,omitempty"`
	ShippingAddress types.Address        `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method"`
	PaymentResult   *types.PaymentResult `json:"payment_result,omitempty"`
	ItemsPrice      decimal.Decimal      `json:"items_price"`
	ShippingPrice   decimal.Decimal      `json:"shipping_price"`
	TaxPrice        decimal.Decimal      `json:"tax_price"`
	TotalPrice      decimal.Decimal      `json:"total_price"`
	IsPaid          bool                 `json:"is_paid"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	IsDelivered     bool                 `json:"is_delivered"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	Items           []OrderItemDTO       `json:"items"`
	CreatedAt       time.Time            `json:"created_at"`
}

// OrderItemDTO is one immutable line of the order.
type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}

	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Slug:      item.Slug,
			Image:     item.Image,
			Price:     item.Price,
			Qty:       item.Qty,
		})
	}

	return &OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		User:            users.FromModel(o.User),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentResult:   o.PaymentResult,
		ItemsPrice:      o.ItemsPrice,
		ShippingPrice:   o.ShippingPrice,
		TaxPrice:        o.TaxPrice,
		TotalPrice:      o.TotalPrice,
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

func FromModels(list []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(list))
	for i := range list {
		out = append(out, *FromModel(&list[i]))
	}
	return out
}
