package orders

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
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
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
	stock  map[uuid.UUID]int
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{
		orders: map[uuid.UUID]*models.Order{},
		stock:  map[uuid.UUID]int{},
	}
}

func (r *stubOrderRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (r *stubOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *stubOrderRepo) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order.Items, nil
}

func (r *stubOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, int64, error) {
	var rows []models.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			rows = append(rows, *order)
		}
	}
	return rows, int64(len(rows)), nil
}

func (r *stubOrderRepo) List(ctx context.Context, params pagination.Params) ([]models.Order, int64, error) {
	var rows []models.Order
	for _, order := range r.orders {
		rows = append(rows, *order)
	}
	return rows, int64(len(rows)), nil
}

func (r *stubOrderRepo) SetPaid(ctx context.Context, id uuid.UUID, result *types.PaymentResult, paidAt time.Time) error {
	order, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = result
	return nil
}

func (r *stubOrderRepo) SetPaymentResult(ctx context.Context, id uuid.UUID, result *types.PaymentResult) error {
	order, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.PaymentResult = result
	return nil
}

func (r *stubOrderRepo) SetDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	order, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.IsDelivered = true
	order.DeliveredAt = &deliveredAt
	return nil
}

func (r *stubOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.orders, id)
	return nil
}

func (r *stubOrderRepo) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	r.stock[productID] -= qty
	return r.stock[productID], nil
}

func (r *stubOrderRepo) CountOrders(ctx context.Context) (int64, error) {
	return int64(len(r.orders)), nil
}

func (r *stubOrderRepo) CountUsers(ctx context.Context) (int64, error)    { return 2, nil }
func (r *stubOrderRepo) CountProducts(ctx context.Context) (int64, error) { return 5, nil }

func (r *stubOrderRepo) TotalSales(ctx context.Context) (string, error) {
	total := decimal.Zero
	for _, order := range r.orders {
		total = total.Add(order.TotalPrice)
	}
	return total.StringFixed(2), nil
}

func (r *stubOrderRepo) SalesByMonth(ctx context.Context) ([]MonthlySales, error) {
	return []MonthlySales{{Month: "08/26", TotalSales: decimal.RequireFromString("102.00")}}, nil
}

func (r *stubOrderRepo) Latest(ctx context.Context, limit int) ([]models.Order, error) {
	rows, _, err := r.List(ctx, pagination.Params{})
	return rows, err
}

type stubCartRepo struct {
	carts   map[uuid.UUID]*models.Cart
	cleared []uuid.UUID
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{carts: map[uuid.UUID]*models.Cart{}}
}

func (r *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return r }

func (r *stubCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	c, ok := r.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *stubCartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	for _, c := range r.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCartRepo) FindBySession(ctx context.Context, sessionCartID string) (*models.Cart, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCartRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.FindByID(ctx, id)
}

func (r *stubCartRepo) Create(ctx context.Context, c *models.Cart) (*models.Cart, error) {
	c.ID = uuid.New()
	r.carts[c.ID] = c
	return c, nil
}

func (r *stubCartRepo) Claim(ctx context.Context, cartID, userID uuid.UUID, sessionCartID string) error {
	return nil
}

func (r *stubCartRepo) UpdatePrices(ctx context.Context, c *models.Cart) error { return nil }

func (r *stubCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error { return nil }

func (r *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return nil
}

func (r *stubCartRepo) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	c, ok := r.carts[cartID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c.Items, nil
}

func (r *stubCartRepo) Clear(ctx context.Context, cartID uuid.UUID) error {
	r.cleared = append(r.cleared, cartID)
	if c, ok := r.carts[cartID]; ok {
		c.Items = nil
	}
	return nil
}

func (r *stubCartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.carts, id)
	return nil
}

type stubUsers struct {
	byID map[uuid.UUID]*models.User
}

func (u *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := u.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubEmitter struct {
	emitted []outbox.DomainEvent
}

func (e *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.emitted = append(e.emitted, event)
	return nil
}

func (e *stubEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, existing := range e.emitted {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	e.emitted = append(e.emitted, event)
	return nil
}

func (e *stubEmitter) countByType(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range e.emitted {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type ordersFixture struct {
	repo    *stubOrderRepo
	carts   *stubCartRepo
	users   *stubUsers
	emitter *stubEmitter
	svc     Service
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()

	fixture := &ordersFixture{
		repo:    newStubOrderRepo(),
		carts:   newStubCartRepo(),
		users:   &stubUsers{byID: map[uuid.UUID]*models.User{}},
		emitter: &stubEmitter{},
	}
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})

	svc, err := NewService(fixture.repo, fixture.carts, fixture.users, stubTx{}, fixture.emitter, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func seedCheckoutUser(fixture *ordersFixture, method enums.PaymentMethod) *models.User {
	userID := uuid.New()
	address := types.Address{
		FullName:   "Jane Buyer",
		Street:     "123 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "USA",
	}
	user := &models.User{
		ID:            userID,
		Name:          "Jane Buyer",
		Email:         "jane@example.com",
		Role:          enums.UserRoleUser,
		Address:       &address,
		PaymentMethod: &method,
	}
	fixture.users.byID[userID] = user
	return user
}

func seedUserCart(fixture *ordersFixture, userID uuid.UUID) *models.Cart {
	c := &models.Cart{
		UserID:        &userID,
		ItemsPrice:    decimal.RequireFromString("80.00"),
		ShippingPrice: decimal.RequireFromString("10.00"),
		TaxPrice:      decimal.RequireFromString("12.00"),
		TotalPrice:    decimal.RequireFromString("102.00"),
		Items: []models.CartItem{{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Name:      "Polo Classic Shirt",
			Slug:      "polo-classic-shirt",
			Price:     decimal.RequireFromString("40.00"),
			Qty:       2,
		}},
	}
	created, _ := fixture.carts.Create(context.Background(), c)
	return created
}

func TestCreateFreezesCartIntoOrder(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
	userCart := seedUserCart(fixture, user.ID)

	order, err := fixture.svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := order.ItemsPrice.StringFixed(2); got != "80.00" {
		t.Fatalf("items price = %s, want 80.00", got)
	}
	if got := order.ShippingPrice.StringFixed(2); got != "10.00" {
		t.Fatalf("shipping price = %s, want 10.00", got)
	}
	if got := order.TaxPrice.StringFixed(2); got != "12.00" {
		t.Fatalf("tax price = %s, want 12.00", got)
	}
	if got := order.TotalPrice.StringFixed(2); got != "102.00" {
		t.Fatalf("total price = %s, want 102.00", got)
	}
	if len(order.Items) != 1 || order.Items[0].Qty != 2 {
		t.Fatalf("expected frozen line with qty 2, got %+v", order.Items)
	}
	if order.PaymentMethod != enums.PaymentMethodPayPal {
		t.Fatalf("payment method = %s", order.PaymentMethod)
	}
	if order.ShippingAddress.FullName != "Jane Buyer" {
		t.Fatalf("address not frozen: %+v", order.ShippingAddress)
	}

	if len(fixture.carts.cleared) != 1 || fixture.carts.cleared[0] != userCart.ID {
		t.Fatalf("expected cart cleared, got %v", fixture.carts.cleared)
	}
	if fixture.emitter.countByType(enums.EventOrderCreated) != 1 {
		t.Fatalf("expected one order.created event, got %d", len(fixture.emitter.emitted))
	}
}

func TestCreateCopiesStoredCartPricesVerbatim(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)

	// a cart priced under an earlier shipping config keeps its stored
	// breakdown; checkout must not re-derive from the lines
	c := &models.Cart{
		UserID:        &user.ID,
		ItemsPrice:    decimal.RequireFromString("80.00"),
		ShippingPrice: decimal.RequireFromString("5.00"),
		TaxPrice:      decimal.RequireFromString("12.00"),
		TotalPrice:    decimal.RequireFromString("97.00"),
		Items: []models.CartItem{{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Name:      "Polo Classic Shirt",
			Slug:      "polo-classic-shirt",
			Price:     decimal.RequireFromString("40.00"),
			Qty:       2,
		}},
	}
	if _, err := fixture.carts.Create(context.Background(), c); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	order, err := fixture.svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := order.ShippingPrice.StringFixed(2); got != "5.00" {
		t.Fatalf("shipping price = %s, want stored 5.00", got)
	}
	if got := order.TotalPrice.StringFixed(2); got != "97.00" {
		t.Fatalf("total price = %s, want stored 97.00", got)
	}
}

func TestCreatePreconditionsRedirect(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		fixture := newOrdersFixture(t)
		user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)

		_, err := fixture.svc.Create(context.Background(), user.ID)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected VALIDATION, got %v", err)
		}
		if typed.RedirectTarget() != "/cart" {
			t.Fatalf("redirect = %q, want /cart", typed.RedirectTarget())
		}
		if len(fixture.repo.orders) != 0 {
			t.Fatal("no order should be written")
		}
	})

	t.Run("missing address", func(t *testing.T) {
		fixture := newOrdersFixture(t)
		user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
		user.Address = nil
		seedUserCart(fixture, user.ID)

		_, err := fixture.svc.Create(context.Background(), user.ID)
		typed := pkgerrors.As(err)
		if typed == nil || typed.RedirectTarget() != "/shipping-address" {
			t.Fatalf("expected redirect to /shipping-address, got %v", err)
		}
	})

	t.Run("missing payment method", func(t *testing.T) {
		fixture := newOrdersFixture(t)
		user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
		user.PaymentMethod = nil
		seedUserCart(fixture, user.ID)

		_, err := fixture.svc.Create(context.Background(), user.ID)
		typed := pkgerrors.As(err)
		if typed == nil || typed.RedirectTarget() != "/payment-method" {
			t.Fatalf("expected redirect to /payment-method, got %v", err)
		}
	})
}

func TestMarkPaidDecrementsStockOnce(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
	seedUserCart(fixture, user.ID)

	order, err := fixture.svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	productID := order.Items[0].ProductID
	fixture.repo.stock[productID] = 10

	result := &types.PaymentResult{
		ID:           "CAPTURE-1",
		Status:       "COMPLETED",
		EmailAddress: "jane@example.com",
		PricePaid:    "102.00",
	}
	paid, err := fixture.svc.MarkPaid(context.Background(), order.ID, result)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !paid.IsPaid || paid.PaidAt == nil {
		t.Fatalf("expected order paid, got %+v", paid)
	}
	if paid.PaymentResult == nil || paid.PaymentResult.ID != "CAPTURE-1" {
		t.Fatalf("payment result not stored: %+v", paid.PaymentResult)
	}
	if fixture.repo.stock[productID] != 8 {
		t.Fatalf("stock = %d, want 8", fixture.repo.stock[productID])
	}

	_, err = fixture.svc.MarkPaid(context.Background(), order.ID, result)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT on double capture, got %v", err)
	}
	if fixture.repo.stock[productID] != 8 {
		t.Fatalf("stock decremented twice: %d", fixture.repo.stock[productID])
	}
	if fixture.emitter.countByType(enums.EventOrderPaid) != 1 {
		t.Fatalf("expected single order.paid event")
	}
}

func TestMarkPaidAllowsNegativeStockAndLogsIt(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
	seedUserCart(fixture, user.ID)

	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: &logs})
	svc, err := NewService(fixture.repo, fixture.carts, fixture.users, stubTx{}, fixture.emitter, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	order, err := svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	productID := order.Items[0].ProductID
	fixture.repo.stock[productID] = 1

	// the money is already captured, an oversold line must not fail the capture
	paid, err := svc.MarkPaid(context.Background(), order.ID, &types.PaymentResult{ID: "CAPTURE-2"})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !paid.IsPaid {
		t.Fatalf("expected order paid, got %+v", paid)
	}
	if fixture.repo.stock[productID] != -1 {
		t.Fatalf("stock = %d, want -1", fixture.repo.stock[productID])
	}
	if !strings.Contains(logs.String(), "stock went negative") {
		t.Fatalf("expected negative stock warning, got %s", logs.String())
	}
	if !strings.Contains(logs.String(), productID.String()) {
		t.Fatalf("expected product id in warning, got %s", logs.String())
	}
}

func TestMarkPaidUnknownOrder(t *testing.T) {
	fixture := newOrdersFixture(t)

	_, err := fixture.svc.MarkPaid(context.Background(), uuid.New(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDeliverGuards(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodCashOnDelivery)
	seedUserCart(fixture, user.ID)

	order, err := fixture.svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = fixture.svc.Deliver(context.Background(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT before payment, got %v", err)
	}

	if _, err := fixture.svc.MarkPaid(context.Background(), order.ID, nil); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	delivered, err := fixture.svc.Deliver(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !delivered.IsDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("expected delivered, got %+v", delivered)
	}

	_, err = fixture.svc.Deliver(context.Background(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT on repeat delivery, got %v", err)
	}
}

func TestGetByIDOwnership(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
	seedUserCart(fixture, user.ID)

	order, err := fixture.svc.Create(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := fixture.svc.GetByID(context.Background(), order.ID, user.ID, false); err != nil {
		t.Fatalf("owner fetch: %v", err)
	}

	_, err = fixture.svc.GetByID(context.Background(), order.ID, uuid.New(), false)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for stranger, got %v", err)
	}

	if _, err := fixture.svc.GetByID(context.Background(), order.ID, uuid.New(), true); err != nil {
		t.Fatalf("admin fetch: %v", err)
	}
}

func TestSummaryAggregates(t *testing.T) {
	fixture := newOrdersFixture(t)
	user := seedCheckoutUser(fixture, enums.PaymentMethodPayPal)
	seedUserCart(fixture, user.ID)

	if _, err := fixture.svc.Create(context.Background(), user.ID); err != nil {
		t.Fatalf("create: %v", err)
	}

	summary, err := fixture.svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.OrdersCount != 1 {
		t.Fatalf("orders count = %d", summary.OrdersCount)
	}
	if got := summary.TotalSales.StringFixed(2); got != "102.00" {
		t.Fatalf("total sales = %s, want 102.00", got)
	}
	if len(summary.SalesByMonth) != 1 || summary.SalesByMonth[0].Month != "08/26" {
		t.Fatalf("sales by month = %+v", summary.SalesByMonth)
	}
	if len(summary.LatestOrders) != 1 {
		t.Fatalf("latest orders = %d", len(summary.LatestOrders))
	}
}
