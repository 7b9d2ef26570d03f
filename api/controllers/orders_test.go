package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/api/middleware"
	ordersvc "github.com/davidruizdev/storefront-backend/internal/orders"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	"github.com/davidruizdev/storefront-backend/pkg/enums"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
	"github.com/davidruizdev/storefront-backend/pkg/types"
)

type stubOrderService struct {
	ordersvc.Service
	order       *models.Order
	list        *ordersvc.ListResult
	err         error
	created     []uuid.UUID
	lastAdmin   bool
	lastUser    uuid.UUID
	lastOrderID uuid.UUID
}

func (s *stubOrderService) Create(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, userID)
	return s.order, nil
}

func (s *stubOrderService) GetByID(ctx context.Context, id, requesterID uuid.UUID, isAdmin bool) (*models.Order, error) {
	s.lastOrderID = id
	s.lastUser = requesterID
	s.lastAdmin = isAdmin
	return s.order, s.err
}

func (s *stubOrderService) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ordersvc.ListResult, error) {
	s.lastUser = userID
	return s.list, s.err
}

func placedOrder(userID uuid.UUID) *models.Order {
	paidAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return &models.Order{
		ID:     uuid.New(),
		UserID: userID,
		ShippingAddress: types.Address{
			FullName:   "Jane Buyer",
			Street:     "123 Main St",
			City:       "Springfield",
			PostalCode: "12345",
			Country:    "USA",
		},
		PaymentMethod: enums.PaymentMethodPayPal,
		ItemsPrice:    decimal.RequireFromString("80.00"),
		ShippingPrice: decimal.RequireFromString("0.00"),
		TaxPrice:      decimal.RequireFromString("12.00"),
		TotalPrice:    decimal.RequireFromString("92.00"),
		IsPaid:        true,
		PaidAt:        &paidAt,
		Items: []models.OrderItem{{
			ProductID: uuid.New(),
			Name:      "Polo Classic Shirt",
			Qty:       2,
			Price:     decimal.RequireFromString("40.00"),
		}},
	}
}

func signedInRequest(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestOrderCreateSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrderService{order: placedOrder(userID)}
	handler := OrderCreate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req = signedInRequest(req, userID, enums.UserRoleUser)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.created) != 1 || svc.created[0] != userID {
		t.Fatalf("created for %v, want %s", svc.created, userID)
	}

	var envelope struct {
		Data ordersvc.OrderDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.IsPaid || envelope.Data.PaidAt == nil {
		t.Fatalf("paid state lost in response: %+v", envelope.Data)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].Qty != 2 {
		t.Fatalf("unexpected items: %+v", envelope.Data.Items)
	}
}

func TestOrderCreateRequiresAuth(t *testing.T) {
	svc := &stubOrderService{}
	handler := OrderCreate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if len(svc.created) != 0 {
		t.Fatal("service should not be called without a user")
	}
}

func TestOrderCreateEmptyCart(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	handler := OrderCreate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req = signedInRequest(req, uuid.New(), enums.UserRoleUser)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderDetailForwardsAdminFlag(t *testing.T) {
	adminID := uuid.New()
	order := placedOrder(uuid.New())
	svc := &stubOrderService{order: order}
	handler := OrderDetail(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", order.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	req = signedInRequest(req, adminID, enums.UserRoleAdmin)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.lastAdmin {
		t.Fatal("admin role not forwarded to the service")
	}
	if svc.lastOrderID != order.ID || svc.lastUser != adminID {
		t.Fatalf("wrong lookup: order %s user %s", svc.lastOrderID, svc.lastUser)
	}
}

func TestOrderDetailForeignOrder(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeForbidden, "not your order")}
	handler := OrderDetail(svc, nil)

	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	req = signedInRequest(req, uuid.New(), enums.UserRoleUser)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrderListMine(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrderService{list: &ordersvc.ListResult{
		Orders: []models.Order{*placedOrder(userID)},
		Page:   pagination.Page{Page: 1, Limit: 20, TotalRows: 1, TotalPages: 1},
	}}
	handler := OrderListMine(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/mine", nil)
	req = signedInRequest(req, userID, enums.UserRoleUser)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastUser != userID {
		t.Fatalf("listed for %s, want %s", svc.lastUser, userID)
	}

	var envelope struct {
		Data struct {
			Orders     []ordersvc.OrderDTO `json:"orders"`
			Pagination pagination.Page     `json:"pagination"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 {
		t.Fatalf("expected one order, got %d", len(envelope.Data.Orders))
	}
	if envelope.Data.Pagination.TotalRows != 1 {
		t.Fatalf("unexpected pagination: %+v", envelope.Data.Pagination)
	}
}
