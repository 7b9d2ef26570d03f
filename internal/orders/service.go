package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/internal/cart"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/outbox"
	"github.com/davidruizdev/storefront-backend/pkg/outbox/payloads"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// Service exposes checkout and order lifecycle operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID, requesterID uuid.UUID, isAdmin bool) (*models.Order, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	ListAll(ctx context.Context, params pagination.Params) (*ListResult, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, result *types.PaymentResult) (*models.Order, error)
	RecordPaymentInit(ctx context.Context, orderID uuid.UUID, providerRef string) error
	Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
	Summary(ctx context.Context) (*SummaryResult, error)
}

// ListResult is one page of orders.
type ListResult struct {
	Orders []models.Order  `json:"orders"`
	Page   pagination.Page `json:"pagination"`
}

// SummaryResult backs the admin overview dashboard.
type SummaryResult struct {
	OrdersCount   int64           `json:"orders_count"`
	UsersCount    int64           `json:"users_count"`
	ProductsCount int64           `json:"products_count"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	SalesByMonth  []MonthlySales  `json:"sales_by_month"`
	LatestOrders  []models.Order  `json:"latest_orders"`
}

const latestOrdersLimit = 6

type service struct {
	repo   Repository
	carts  cart.Repository
	users  userLoader
	tx     txRunner
	events eventEmitter
	logg   *logger.Logger
}

// NewService builds an order service backed by the provided stack.
func NewService(repo Repository, carts cart.Repository, users userLoader, tx txRunner, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, carts: carts, users: users, tx: tx, events: events, logg: logg}, nil
}

// Create freezes the user's cart into an order. The cart must be non-empty
// and the user must have a shipping address and payment method on file; each
// missing precondition carries the page the buyer should be sent to.
func (s *service) Create(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	userCart, err := s.carts.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if userCart == nil || len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "your cart is empty").
			WithRedirect("/cart")
	}
	if user.Address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping address on file").
			WithRedirect("/shipping-address")
	}
	if user.PaymentMethod == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no payment method on file").
			WithRedirect("/payment-method")
	}

	// the cart carries the last-computed breakdown; copy it as-is, the
	// cart mutations are the only place prices get derived
	order := &models.Order{
		UserID:          userID,
		ShippingAddress: *user.Address,
		PaymentMethod:   *user.PaymentMethod,
		ItemsPrice:      userCart.ItemsPrice,
		ShippingPrice:   userCart.ShippingPrice,
		TaxPrice:        userCart.TaxPrice,
		TotalPrice:      userCart.TotalPrice,
		Items:           make([]models.OrderItem, 0, len(userCart.Items)),
	}
	for _, line := range userCart.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Slug:      line.Slug,
			Image:     line.Image,
			Price:     line.Price,
			Qty:       line.Qty,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created

		if err := s.carts.WithTx(tx).Clear(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: user.Role.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        userID,
				PaymentMethod: order.PaymentMethod.String(),
				TotalPrice:    order.TotalPrice.StringFixed(2),
				ItemCount:     len(order.Items),
			},
			Version: 1,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")
	return order, nil
}

// GetByID returns the order when the requester owns it or is an admin.
func (s *service) GetByID(ctx context.Context, id uuid.UUID, requesterID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !isAdmin && order.UserID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

// ListMine pages through the requester's order history.
func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	rows, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &ListResult{Orders: rows, Page: pagination.NewPage(params.Normalize(), total)}, nil
}

// ListAll pages through every order for the back office.
func (s *service) ListAll(ctx context.Context, params pagination.Params) (*ListResult, error) {
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &ListResult{Orders: rows, Page: pagination.NewPage(params.Normalize(), total)}, nil
}

// MarkPaid converges payment onto the order exactly once. A second capture
// for the same order is rejected with a state conflict, and stock is only
// decremented on the first transition.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID, result *types.PaymentResult) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order, err := txRepo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.IsPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}

		items, err := txRepo.ListItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		for _, item := range items {
			remaining, err := txRepo.DecrementStock(ctx, item.ProductID, item.Qty)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			// the payment is already captured, so an oversold line is
			// flagged for the back office instead of failing the capture
			if remaining < 0 {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"product_id": item.ProductID.String(),
					"stock":      remaining,
				})
				s.logg.Warn(logCtx, "stock went negative")
			}
		}

		paidAt := time.Now().UTC()
		if err := txRepo.SetPaid(ctx, orderID, result, paidAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set paid")
		}

		captureID := ""
		if result != nil {
			captureID = result.ID
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderPaidEvent{
				OrderID:       orderID,
				UserID:        order.UserID,
				PaymentMethod: order.PaymentMethod.String(),
				CaptureID:     captureID,
				TotalPrice:    order.TotalPrice.StringFixed(2),
				PaidAt:        paidAt,
			},
			Version: 1,
		}
		if err := s.events.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order paid")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "mark order paid")
	}

	s.logg.Info(ctx, "order marked as paid")
	return s.reload(ctx, orderID)
}

// RecordPaymentInit stores the provider-side reference created for the order
// so the later capture can be matched against it.
func (s *service) RecordPaymentInit(ctx context.Context, orderID uuid.UUID, providerRef string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.IsPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	result := &types.PaymentResult{ID: providerRef}
	if err := s.repo.SetPaymentResult(ctx, orderID, result); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
	}
	return nil
}

// Deliver flags a paid order as delivered.
func (s *service) Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order, err := txRepo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if !order.IsPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid")
		}
		if order.IsDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already delivered")
		}

		if err := txRepo.SetDelivered(ctx, orderID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set delivered")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "deliver order")
	}

	return s.reload(ctx, orderID)
}

// Delete removes an order from the back office.
func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.repo.Delete(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
	}
	return nil
}

// Summary aggregates the figures behind the admin overview page.
func (s *service) Summary(ctx context.Context) (*SummaryResult, error) {
	ordersCount, err := s.repo.CountOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}
	usersCount, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	productsCount, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	totalRaw, err := s.repo.TotalSales(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum sales")
	}
	total, err := decimal.NewFromString(totalRaw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse sales total")
	}
	byMonth, err := s.repo.SalesByMonth(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales by month")
	}
	latest, err := s.repo.Latest(ctx, latestOrdersLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "latest orders")
	}

	return &SummaryResult{
		OrdersCount:   ordersCount,
		UsersCount:    usersCount,
		ProductsCount: productsCount,
		TotalSales:    total,
		SalesByMonth:  byMonth,
		LatestOrders:  latest,
	}, nil
}

func (s *service) reload(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return order, nil
}

func asServiceError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
