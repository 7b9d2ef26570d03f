package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/sendgrid"
)

type mailSender interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service sends transactional email triggered by order events.
type Service struct {
	mail   mailSender
	orders orderLoader
	logg   *logger.Logger
}

// NewService builds the notification service.
func NewService(mail mailSender, orders orderLoader, logg *logger.Logger) (*Service, error) {
	if mail == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{mail: mail, orders: orders, logg: logg}, nil
}

// SendOrderReceipt mails the purchase receipt for a paid order.
func (s *Service) SendOrderReceipt(ctx context.Context, orderID uuid.UUID) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.User == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order has no user loaded")
	}

	body, err := renderReceipt(order)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render receipt")
	}

	msg := sendgrid.Message{
		ToEmail:  order.User.Email,
		ToName:   order.User.Name,
		Subject:  fmt.Sprintf("Your order %s", order.ID),
		HTMLBody: body,
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send receipt")
	}

	s.logg.Info(ctx, "order receipt sent")
	return nil
}
