package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/outbox"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// Repository defines the persistence surface required by the order service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error)
	List(ctx context.Context, params pagination.Params) ([]models.Order, int64, error)
	SetPaid(ctx context.Context, id uuid.UUID, result *types.PaymentResult, paidAt time.Time) error
	SetPaymentResult(ctx context.Context, id uuid.UUID, result *types.PaymentResult) error
	SetDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	CountOrders(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
	TotalSales(ctx context.Context) (string, error)
	SalesByMonth(ctx context.Context) ([]MonthlySales, error)
	Latest(ctx context.Context, limit int) ([]models.Order, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
