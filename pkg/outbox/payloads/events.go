package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedEvent signals that a cart was frozen into an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	PaymentMethod string    `json:"payment_method"`
	TotalPrice    string    `json:"total_price"`
	ItemCount     int       `json:"item_count"`
}

// OrderPaidEvent is emitted once payment converges, regardless of provider.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	PaymentMethod string    `json:"payment_method"`
	CaptureID     string    `json:"capture_id,omitempty"`
	TotalPrice    string    `json:"total_price"`
	PaidAt        time.Time `json:"paid_at"`
}
