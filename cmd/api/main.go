package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juan12312121/mercado-backend/api/routes"
	"github.com/juan12312121/mercado-backend/internal/auth"
	"github.com/juan12312121/mercado-backend/internal/cart"
	"github.com/juan12312121/mercado-backend/internal/catalog"
	"github.com/juan12312121/mercado-backend/internal/checkout"
	"github.com/juan12312121/mercado-backend/internal/coupons"
	"github.com/juan12312121/mercado-backend/internal/moderation"
	"github.com/juan12312121/mercado-backend/internal/notifications"
	"github.com/juan12312121/mercado-backend/internal/orders"
	"github.com/juan12312121/mercado-backend/internal/payments"
	"github.com/juan12312121/mercado-backend/internal/reviews"
	"github.com/juan12312121/mercado-backend/internal/sellers"
	"github.com/juan12312121/mercado-backend/internal/users"
	"github.com/juan12312121/mercado-backend/pkg/auth/session"
	"github.com/juan12312121/mercado-backend/pkg/config"
	"github.com/juan12312121/mercado-backend/pkg/db"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/mercadopago"
	"github.com/juan12312121/mercado-backend/pkg/metrics"
	"github.com/juan12312121/mercado-backend/pkg/migrate"
	"github.com/juan12312121/mercado-backend/pkg/outbox"
	"github.com/juan12312121/mercado-backend/pkg/outbox/idempotency"
	"github.com/juan12312121/mercado-backend/pkg/redis"
	"github.com/juan12312121/mercado-backend/pkg/stripe"
)

// Webhook events older than this can be re-processed; both providers stop
// retrying well before the window lapses.
const webhookDedupTTL = 7 * 24 * time.Hour

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
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

	usersRepo := users.NewRepository(dbClient.DB())
	sellersRepo := sellers.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	couponsRepo := coupons.NewRepository(dbClient.DB())
	reviewsRepo := reviews.NewRepository(dbClient.DB())
	moderationRepo := moderation.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SellerRepo:     sellersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(usersRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	sellersService, err := sellers.NewService(sellersRepo, usersRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create sellers service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalogRepo, sellersService)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	couponsService, err := coupons.NewService(couponsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupons service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, catalogRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		dbClient,
		cartService,
		usersService,
		catalogRepo,
		ordersRepo,
		couponsService,
		outboxService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(cfg.Stripe)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}
	mercadoPagoClient, err := mercadopago.NewClient(cfg.MercadoPago)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago client", err)
		os.Exit(1)
	}

	stripeProvider, err := payments.NewStripeProvider(stripeClient, cfg.App.BaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe provider", err)
		os.Exit(1)
	}
	mercadoPagoProvider, err := payments.NewMercadoPagoProvider(mercadoPagoClient, cfg.App.BaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create mercadopago provider", err)
		os.Exit(1)
	}

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	paymentsService, err := payments.NewService(
		paymentsRepo,
		ordersService,
		couponsService,
		[]payments.CheckoutProvider{stripeProvider, mercadoPagoProvider},
		dbClient,
		outboxService,
		paymentMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	reviewsService, err := reviews.NewService(reviewsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create reviews service", err)
		os.Exit(1)
	}

	moderationService, err := moderation.NewService(moderationRepo, sellersService)
	if err != nil {
		logg.Error(context.Background(), "failed to create moderation service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	webhookGuard, err := idempotency.NewManager(redisClient, webhookDedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Auth:          authService,
			Users:         usersService,
			Sellers:       sellersService,
			Catalog:       catalogService,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Payments:      paymentsService,
			Coupons:       couponsService,
			Reviews:       reviewsService,
			Moderation:    moderationService,
			Notifications: notificationsService,
		}, routes.Clients{
			DB:             dbClient,
			Redis:          redisClient,
			Session:        sessionManager,
			Stripe:         stripeClient,
			MercadoPago:    mercadoPagoClient,
			WebhookGuard:   webhookGuard,
			PaymentMetrics: paymentMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
