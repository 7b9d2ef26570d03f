package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/internal/pricing"
	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
)

type stubRepo struct {
	carts map[uuid.UUID]*models.Cart
}

func newStubRepo() *stubRepo {
	return &stubRepo{carts: map[uuid.UUID]*models.Cart{}}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	cart, ok := r.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cart, nil
}

func (r *stubRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	for _, cart := range r.carts {
		if cart.UserID != nil && *cart.UserID == userID {
			return cart, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindBySession(ctx context.Context, sessionCartID string) (*models.Cart, error) {
	for _, cart := range r.carts {
		if cart.SessionCartID == sessionCartID {
			return cart, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.FindByID(ctx, id)
}

func (r *stubRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.ID = uuid.New()
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	r.carts[cart.ID] = cart
	return cart, nil
}

func (r *stubRepo) Claim(ctx context.Context, cartID, userID uuid.UUID, sessionCartID string) error {
	cart, ok := r.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cart.UserID = &userID
	cart.SessionCartID = sessionCartID
	return nil
}

func (r *stubRepo) UpdatePrices(ctx context.Context, cart *models.Cart) error {
	stored, ok := r.carts[cart.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.ItemsPrice = cart.ItemsPrice
	stored.ShippingPrice = cart.ShippingPrice
	stored.TaxPrice = cart.TaxPrice
	stored.TotalPrice = cart.TotalPrice
	return nil
}

func (r *stubRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	cart, ok := r.carts[item.CartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Qty = item.Qty
			cart.Items[i].Price = item.Price
			cart.Items[i].Name = item.Name
			return nil
		}
	}
	cart.Items = append(cart.Items, *item)
	return nil
}

func (r *stubRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	cart, ok := r.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	return nil
}

func (r *stubRepo) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	cart, ok := r.carts[cartID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cart.Items, nil
}

func (r *stubRepo) Clear(ctx context.Context, cartID uuid.UUID) error {
	cart, ok := r.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cart.Items = nil
	cart.ItemsPrice = decimal.Zero
	cart.ShippingPrice = decimal.Zero
	cart.TaxPrice = decimal.Zero
	cart.TotalPrice = decimal.Zero
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.carts, id)
	return nil
}

type stubProducts struct {
	byID map[uuid.UUID]*models.Product
}

func (p *stubProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := p.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, products productLoader) Service {
	t.Helper()

	calc, err := pricing.NewCalculator(config.CheckoutConfig{
		FreeShippingThreshold: "100",
		FlatShippingPrice:     "10",
		TaxRate:               "0.15",
	})
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	svc, err := NewService(repo, products, stubTx{}, calc)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func testProduct(price string, stock int) *models.Product {
	return &models.Product{
		ID:     uuid.New(),
		Name:   "Polo Classic Shirt",
		Slug:   "polo-classic-shirt",
		Images: []string{"/images/polo-1.jpg"},
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
	}
}

func TestAddItemCreatesCartThenBumpsQty(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("40.00", 5)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	owner := Owner{SessionCartID: "sess-1"}

	cart, err := svc.AddItem(context.Background(), owner, product.ID)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Qty != 1 {
		t.Fatalf("expected single line with qty 1, got %+v", cart.Items)
	}

	cart, err = svc.AddItem(context.Background(), owner, product.ID)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected same line reused, got %d lines", len(cart.Items))
	}
	if cart.Items[0].Qty != 2 {
		t.Fatalf("expected qty 2, got %d", cart.Items[0].Qty)
	}
	if got := cart.ItemsPrice.StringFixed(2); got != "80.00" {
		t.Fatalf("items price = %s, want 80.00", got)
	}
	if got := cart.ShippingPrice.StringFixed(2); got != "10.00" {
		t.Fatalf("shipping price = %s, want 10.00", got)
	}
	if got := cart.TaxPrice.StringFixed(2); got != "12.00" {
		t.Fatalf("tax price = %s, want 12.00", got)
	}
	if got := cart.TotalPrice.StringFixed(2); got != "102.00" {
		t.Fatalf("total price = %s, want 102.00", got)
	}
}

func TestAddItemRejectsWhenStockExhausted(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("25.00", 1)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	owner := Owner{SessionCartID: "sess-2"}

	if _, err := svc.AddItem(context.Background(), owner, product.ID); err != nil {
		t.Fatalf("add within stock: %v", err)
	}

	_, err := svc.AddItem(context.Background(), owner, product.ID)
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected OUT_OF_STOCK, got %v", err)
	}
}

func TestAddItemZeroStockNoCartCreated(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("25.00", 0)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	_, err := svc.AddItem(context.Background(), Owner{SessionCartID: "sess-3"}, product.ID)
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected OUT_OF_STOCK, got %v", err)
	}
	if len(repo.carts) != 0 {
		t.Fatalf("expected no cart persisted, got %d", len(repo.carts))
	}
}

func TestRemoveItemDecrementsThenDeletesLine(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("15.50", 10)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	owner := Owner{SessionCartID: "sess-4"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.AddItem(ctx, owner, product.ID); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	cart, err := svc.RemoveItem(ctx, owner, product.ID)
	if err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Qty != 1 {
		t.Fatalf("expected qty decremented to 1, got %+v", cart.Items)
	}

	cart, err = svc.RemoveItem(ctx, owner, product.ID)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected line removed, got %+v", cart.Items)
	}
	if got := cart.ItemsPrice.StringFixed(2); got != "0.00" {
		t.Fatalf("items price after emptying = %s, want 0.00", got)
	}
}

func TestRemoveItemMissingCartOrLine(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("15.50", 10)
	other := testProduct("9.99", 3)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{
		product.ID: product,
		other.ID:   other,
	}})

	ctx := context.Background()

	_, err := svc.RemoveItem(ctx, Owner{SessionCartID: "missing"}, product.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for missing cart, got %v", err)
	}

	owner := Owner{SessionCartID: "sess-5"}
	if _, err := svc.AddItem(ctx, owner, product.ID); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	_, err = svc.RemoveItem(ctx, owner, other.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for missing line, got %v", err)
	}
}

func TestGetReturnsEmptyCartWhenNoneExists(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{}})

	cart, err := svc.Get(context.Background(), Owner{SessionCartID: "fresh"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cart.ID != uuid.Nil {
		t.Fatalf("expected unsaved cart, got id %s", cart.ID)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty items, got %d", len(cart.Items))
	}
	if cart.SessionCartID != "fresh" {
		t.Fatalf("session id = %q", cart.SessionCartID)
	}
}

func TestAuthenticatedOwnerResolvesByUser(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("12.00", 4)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})

	userID := uuid.New()
	owner := Owner{UserID: &userID, SessionCartID: "sess-6"}

	if _, err := svc.AddItem(context.Background(), owner, product.ID); err != nil {
		t.Fatalf("add: %v", err)
	}

	// a different session token must still find the user's cart
	cart, err := svc.Get(context.Background(), Owner{UserID: &userID, SessionCartID: "other-device"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected user cart resolved, got %+v", cart)
	}
}

func TestAddItemClaimsGuestCartAfterSignIn(t *testing.T) {
	repo := newStubRepo()
	product := testProduct("28.00", 5)
	svc := newTestService(t, repo, &stubProducts{byID: map[uuid.UUID]*models.Product{product.ID: product}})
	ctx := context.Background()

	guest := Owner{SessionCartID: "sess-guest"}
	if _, err := svc.AddItem(ctx, guest, product.ID); err != nil {
		t.Fatalf("guest add: %v", err)
	}

	userID := uuid.New()
	signedIn := Owner{UserID: &userID, SessionCartID: "sess-guest"}
	cart, err := svc.AddItem(ctx, signedIn, product.ID)
	if err != nil {
		t.Fatalf("add after sign-in: %v", err)
	}

	if len(repo.carts) != 1 {
		t.Fatalf("expected the guest cart claimed, got %d carts", len(repo.carts))
	}
	if cart.UserID == nil || *cart.UserID != userID {
		t.Fatalf("expected cart owned by %s, got %+v", userID, cart.UserID)
	}
	if len(cart.Items) != 1 || cart.Items[0].Qty != 2 {
		t.Fatalf("expected guest line carried over with qty 2, got %+v", cart.Items)
	}
	if cart.SessionCartID == "sess-guest" {
		t.Fatal("expected session token rotated on claim")
	}

	// the old browser token now backs a fresh guest cart
	fresh, err := svc.Get(ctx, Owner{SessionCartID: "sess-guest"})
	if err != nil {
		t.Fatalf("guest get after claim: %v", err)
	}
	if len(fresh.Items) != 0 {
		t.Fatalf("expected empty guest cart, got %+v", fresh.Items)
	}
}

func TestValidateOwnerRequiresSession(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubProducts{byID: map[uuid.UUID]*models.Product{}})

	_, err := svc.Get(context.Background(), Owner{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}
