package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v84"

	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/paypal"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

// capturedStatus is the payment_result status recorded for any settled
// capture, whichever provider produced it.
const capturedStatus = "COMPLETED"

type orderService interface {
	GetByID(ctx context.Context, id uuid.UUID, requesterID uuid.UUID, isAdmin bool) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, result *types.PaymentResult) (*models.Order, error)
	RecordPaymentInit(ctx context.Context, orderID uuid.UUID, providerRef string) error
}

type paypalGateway interface {
	CreateOrder(ctx context.Context, value string) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (*paypal.CaptureResult, error)
}

type stripeGateway interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, orderID string) (*stripego.PaymentIntent, error)
}

// Service converges provider-specific payment flows onto the single order
// paid transition.
type Service struct {
	orders orderService
	paypal paypalGateway
	stripe stripeGateway
	logg   *logger.Logger
}

// NewService builds the payment service. The paypal and stripe gateways are
// optional so a deployment can enable a subset of providers.
func NewService(orders orderService, paypalGW paypalGateway, stripeGW stripeGateway, logg *logger.Logger) (*Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{orders: orders, paypal: paypalGW, stripe: stripeGW, logg: logg}, nil
}

// CreatePayPalOrder opens a PayPal order for the buyer to approve and stores
// the provider reference on the order.
func (s *Service) CreatePayPalOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (string, error) {
	if s.paypal == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "paypal payments are not enabled")
	}

	order, err := s.loadPayableOrder(ctx, orderID, requesterID, isAdmin, enums.PaymentMethodPayPal)
	if err != nil {
		return "", err
	}

	providerOrderID, err := s.paypal.CreateOrder(ctx, order.TotalPrice.StringFixed(2))
	if err != nil {
		return "", err
	}

	if err := s.orders.RecordPaymentInit(ctx, orderID, providerOrderID); err != nil {
		return "", err
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(ctx, "paypal order created")
	return providerOrderID, nil
}

// CapturePayPalOrder captures the approved PayPal order and marks the order
// paid once the captured amount matches the order total.
func (s *Service) CapturePayPalOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*models.Order, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal payments are not enabled")
	}

	order, err := s.loadPayableOrder(ctx, orderID, requesterID, isAdmin, enums.PaymentMethodPayPal)
	if err != nil {
		return nil, err
	}
	if order.PaymentResult == nil || order.PaymentResult.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment has not been initialized")
	}

	capture, err := s.paypal.CaptureOrder(ctx, order.PaymentResult.ID)
	if err != nil {
		return nil, err
	}
	if capture.ID != order.PaymentResult.ID || capture.Status != capturedStatus {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "paypal capture was not completed")
	}
	if err := verifyAmount(capture.AmountPaid, order.TotalPrice); err != nil {
		return nil, err
	}

	return s.orders.MarkPaid(ctx, orderID, &types.PaymentResult{
		ID:           capture.ID,
		Status:       capture.Status,
		EmailAddress: capture.PayerEmail,
		PricePaid:    capture.AmountPaid,
	})
}

// CreateStripeIntent opens a PaymentIntent carrying the order reference in
// its metadata and stores the intent ID on the order.
func (s *Service) CreateStripeIntent(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool) (*stripego.PaymentIntent, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe payments are not enabled")
	}

	order, err := s.loadPayableOrder(ctx, orderID, requesterID, isAdmin, enums.PaymentMethodStripe)
	if err != nil {
		return nil, err
	}

	cents := order.TotalPrice.Mul(decimal.NewFromInt(100)).IntPart()
	intent, err := s.stripe.CreatePaymentIntent(ctx, cents, orderID.String())
	if err != nil {
		return nil, err
	}

	if err := s.orders.RecordPaymentInit(ctx, orderID, intent.ID); err != nil {
		return nil, err
	}
	return intent, nil
}

// HandleStripeEvent converges Stripe webhook deliveries onto the order paid
// transition. Events other than charge.succeeded are acknowledged untouched.
func (s *Service) HandleStripeEvent(ctx context.Context, event stripego.Event) error {
	if event.Type != "charge.succeeded" {
		return nil
	}

	var charge stripego.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge")
	}

	rawOrderID, ok := charge.Metadata["orderId"]
	if !ok || rawOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge carries no order reference")
	}
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order reference")
	}

	order, err := s.orders.GetByID(ctx, orderID, uuid.Nil, true)
	if err != nil {
		return err
	}

	pricePaid := decimal.NewFromInt(charge.Amount).Div(decimal.NewFromInt(100))
	if err := verifyAmount(pricePaid.StringFixed(2), order.TotalPrice); err != nil {
		return err
	}

	email := ""
	if charge.BillingDetails != nil {
		email = charge.BillingDetails.Email
	}
	_, err = s.orders.MarkPaid(ctx, orderID, &types.PaymentResult{
		ID:           charge.ID,
		Status:       capturedStatus,
		EmailAddress: email,
		PricePaid:    pricePaid.StringFixed(2),
	})
	return err
}

// MarkCashOnDelivery settles a cash order from the back office.
func (s *Service) MarkCashOnDelivery(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID, uuid.Nil, true)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodCashOnDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not payable in cash")
	}
	return s.orders.MarkPaid(ctx, orderID, nil)
}

func (s *Service) loadPayableOrder(ctx context.Context, orderID, requesterID uuid.UUID, isAdmin bool, method enums.PaymentMethod) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != method {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order is not payable with %s", method))
	}
	if order.IsPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	return order, nil
}

func verifyAmount(paid string, total decimal.Decimal) error {
	amount, err := decimal.NewFromString(paid)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse captured amount")
	}
	if !amount.Equal(total) {
		return pkgerrors.New(pkgerrors.CodeConflict, "captured amount does not match order total").
			WithDetails(map[string]any{
				"captured": amount.StringFixed(2),
				"expected": total.StringFixed(2),
			})
	}
	return nil
}
