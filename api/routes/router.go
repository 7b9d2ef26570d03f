package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davidruizdev/storefront-backend/api/controllers"
	webhookcontrollers "github.com/davidruizdev/storefront-backend/api/controllers/webhooks"
	"github.com/davidruizdev/storefront-backend/api/middleware"
	"github.com/davidruizdev/storefront-backend/internal/auth"
	"github.com/davidruizdev/storefront-backend/internal/cart"
	"github.com/davidruizdev/storefront-backend/internal/orders"
	"github.com/davidruizdev/storefront-backend/internal/payments"
	"github.com/davidruizdev/storefront-backend/internal/products"
	"github.com/davidruizdev/storefront-backend/internal/reviews"
	"github.com/davidruizdev/storefront-backend/internal/users"
	"github.com/davidruizdev/storefront-backend/pkg/auth/session"
	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/redis"
	"github.com/davidruizdev/storefront-backend/pkg/stripe"
)

type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Sessions     session.Checker
	AuthService  *auth.Service
	Users        users.Service
	Products     products.Service
	Cart         cart.Service
	Orders       orders.Service
	Reviews      reviews.Service
	Payments     *payments.Service
	StripeClient *stripe.Client
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.ServerURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.Payments, p.StripeClient, p.Redis, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(p.Users, p.AuthService, logg))
		r.Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, cfg.JWT, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(p.Products, logg))
		r.Get("/latest", controllers.ProductLatest(p.Products, logg))
		r.Get("/featured", controllers.ProductFeatured(p.Products, logg))
		r.Get("/categories", controllers.ProductCategories(p.Products, logg))
		r.Get("/{slug}", controllers.ProductBySlug(p.Products, logg))
	})

	r.Route("/api/v1/reviews/{productId}", func(r chi.Router) {
		r.Get("/", controllers.ReviewListByProduct(p.Reviews, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
			r.Post("/", controllers.ReviewUpsert(p.Reviews, logg))
			r.Get("/mine", controllers.ReviewMine(p.Reviews, logg))
		})
	})

	// Cart endpoints serve both guests and signed-in shoppers. A bearer
	// token is honored when present; the session header identifies the
	// cart otherwise.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.CartSession(logg))
		r.Get("/", controllers.CartGet(p.Cart, logg))
		r.Post("/items", controllers.CartAddItem(p.Cart, logg))
		r.Delete("/items/{productId}", controllers.CartRemoveItem(p.Cart, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Route("/api/v1/users/me", func(r chi.Router) {
			r.Get("/", controllers.ProfileGet(p.Users, logg))
			r.Put("/", controllers.ProfileUpdate(p.Users, logg))
			r.Put("/address", controllers.ProfileSetAddress(p.Users, logg))
			r.Put("/payment-method", controllers.ProfileSetPaymentMethod(p.Users, logg))
		})

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(p.Orders, logg))
			r.Get("/mine", controllers.OrderListMine(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
			r.Post("/{orderId}/paypal", controllers.PayPalCreateOrder(p.Payments, logg))
			r.Post("/{orderId}/paypal/capture", controllers.PayPalCaptureOrder(p.Payments, logg))
			r.Post("/{orderId}/stripe-intent", controllers.StripeCreateIntent(p.Payments, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RequireRole(adminRole, logg))

		r.Get("/summary", controllers.AdminSummary(p.Orders, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(p.Products, logg))
			r.Post("/", controllers.AdminCreateProduct(p.Products, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(p.Products, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(p.Products, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(p.Orders, logg))
			r.Post("/{orderId}/deliver", controllers.AdminDeliverOrder(p.Orders, logg))
			r.Post("/{orderId}/mark-paid", controllers.AdminMarkOrderPaid(p.Payments, logg))
			r.Delete("/{orderId}", controllers.AdminDeleteOrder(p.Orders, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.AdminListUsers(p.Users, logg))
			r.Patch("/{userId}", controllers.AdminUpdateUser(p.Users, logg))
			r.Delete("/{userId}", controllers.AdminDeleteUser(p.Users, logg))
		})
	})

	return r
}

const adminRole = "admin"
