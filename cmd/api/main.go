package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/davidruizdev/storefront-backend/api/routes"
	"github.com/davidruizdev/storefront-backend/internal/auth"
	"github.com/davidruizdev/storefront-backend/internal/cart"
	"github.com/davidruizdev/storefront-backend/internal/orders"
	"github.com/davidruizdev/storefront-backend/internal/payments"
	"github.com/davidruizdev/storefront-backend/internal/pricing"
	"github.com/davidruizdev/storefront-backend/internal/products"
	"github.com/davidruizdev/storefront-backend/internal/reviews"
	"github.com/davidruizdev/storefront-backend/internal/users"
	"github.com/davidruizdev/storefront-backend/pkg/auth/session"
	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db"
	"github.com/davidruizdev/storefront-backend/pkg/logger"
	"github.com/davidruizdev/storefront-backend/pkg/migrate"
	"github.com/davidruizdev/storefront-backend/pkg/outbox"
	"github.com/davidruizdev/storefront-backend/pkg/paypal"
	"github.com/davidruizdev/storefront-backend/pkg/redis"
	stripeclient "github.com/davidruizdev/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	calc, err := pricing.NewCalculator(cfg.Checkout)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing calculator", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	reviewsRepo := reviews.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	usersSvc, err := users.NewService(usersRepo, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	authSvc, err := auth.NewService(usersSvc, sessionManager, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	productsSvc, err := products.NewService(productsRepo, cfg.Catalog)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(cartRepo, productsRepo, dbClient, calc)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, cartRepo, usersRepo, dbClient, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reviewsSvc, err := reviews.NewService(reviewsRepo, productsRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}

	var paypalClient *paypal.Client
	if cfg.PayPal.ClientID != "" && cfg.PayPal.AppSecret != "" {
		paypalClient, err = paypal.NewClient(cfg.PayPal.ClientID, cfg.PayPal.AppSecret, paypal.WithBaseURL(cfg.PayPal.APIURL))
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal client", err)
			os.Exit(1)
		}
	}

	var stripeClient *stripeclient.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripeclient.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe client", err)
			os.Exit(1)
		}
	}

	paymentsSvc, err := newPaymentsService(ordersSvc, paypalClient, stripeClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	handler := routes.NewRouter(routes.RouterParams{
		Config:       cfg,
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		Sessions:     sessionManager,
		AuthService:  authSvc,
		Users:        usersSvc,
		Products:     productsSvc,
		Cart:         cartSvc,
		Orders:       ordersSvc,
		Reviews:      reviewsSvc,
		Payments:     paymentsSvc,
		StripeClient: stripeClient,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error shutting down api server", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

// newPaymentsService keeps disabled provider gateways as untyped nils so the
// payment service can tell an unconfigured provider apart from a live one.
func newPaymentsService(ordersSvc orders.Service, paypalClient *paypal.Client, stripeClient *stripeclient.Client, logg *logger.Logger) (*payments.Service, error) {
	switch {
	case paypalClient != nil && stripeClient != nil:
		return payments.NewService(ordersSvc, paypalClient, stripeClient, logg)
	case paypalClient != nil:
		return payments.NewService(ordersSvc, paypalClient, nil, logg)
	case stripeClient != nil:
		return payments.NewService(ordersSvc, nil, stripeClient, logg)
	default:
		return payments.NewService(ordersSvc, nil, nil, logg)
	}
}
