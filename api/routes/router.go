package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juan12312121/mercado-backend/api/controllers"
	webhookcontrollers "github.com/juan12312121/mercado-backend/api/controllers/webhooks"
	"github.com/juan12312121/mercado-backend/api/middleware"
	"github.com/juan12312121/mercado-backend/internal/auth"
	"github.com/juan12312121/mercado-backend/internal/cart"
	"github.com/juan12312121/mercado-backend/internal/catalog"
	checkoutsvc "github.com/juan12312121/mercado-backend/internal/checkout"
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
	"github.com/juan12312121/mercado-backend/pkg/enums"
	"github.com/juan12312121/mercado-backend/pkg/logger"
	"github.com/juan12312121/mercado-backend/pkg/mercadopago"
	"github.com/juan12312121/mercado-backend/pkg/metrics"
	"github.com/juan12312121/mercado-backend/pkg/outbox/idempotency"
	"github.com/juan12312121/mercado-backend/pkg/redis"
	"github.com/juan12312121/mercado-backend/pkg/stripe"
)

// Services bundles everything the HTTP surface depends on.
type Services struct {
	Auth          auth.Service
	Users         users.Service
	Sellers       sellers.Service
	Catalog       catalog.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Payments      payments.Service
	Coupons       coupons.Service
	Reviews       reviews.Service
	Moderation    moderation.Service
	Notifications notifications.Service
}

// Clients bundles the infrastructure handles the router wires into middleware
// and webhook endpoints.
type Clients struct {
	DB             db.Pinger
	Redis          *redis.Client
	Session        session.AccessSessionChecker
	Stripe         *stripe.Client
	MercadoPago    *mercadopago.Client
	WebhookGuard   *idempotency.Manager
	PaymentMetrics *metrics.PaymentMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svcs Services, clients Clients) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, clients.DB, clients.Redis))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.Payments, clients.Stripe, clients.WebhookGuard, clients.PaymentMetrics, logg))
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(svcs.Payments, clients.MercadoPago, clients.WebhookGuard, clients.PaymentMetrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(clients.Redis, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, clients.Redis, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, clients.Redis, logg)).Post("/register", controllers.AuthRegister(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
	})

	// Public catalog browse.
	r.Group(func(r chi.Router) {
		r.Get("/api/v1/categories", controllers.ListCategories(svcs.Catalog, logg))
		r.Get("/api/v1/products", controllers.ListProducts(svcs.Catalog, logg))
		r.Get("/api/v1/products/slug/{slug}", controllers.GetProductBySlug(svcs.Catalog, logg))
		r.Get("/api/v1/products/{productID}/reviews", controllers.ListProductReviews(svcs.Reviews, logg))
		r.Get("/api/v1/products/{productID}/rating", controllers.GetProductRating(svcs.Reviews, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, clients.Session, logg))
		r.Use(middleware.Idempotency(clients.Redis, logg))

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.GetProfile(svcs.Users, logg))
			r.Put("/", controllers.UpdateProfile(svcs.Users, logg))
			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.ListAddresses(svcs.Users, logg))
				r.Post("/", controllers.AddAddress(svcs.Users, logg))
				r.Put("/{addressID}", controllers.UpdateAddress(svcs.Users, logg))
				r.Delete("/{addressID}", controllers.DeleteAddress(svcs.Users, logg))
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(svcs.Cart, logg))
			r.Delete("/", controllers.ClearCart(svcs.Cart, logg))
			r.Post("/items", controllers.AddCartItem(svcs.Cart, logg))
			r.Put("/items/{variantID}", controllers.UpdateCartItem(svcs.Cart, logg))
			r.Delete("/items/{variantID}", controllers.RemoveCartItem(svcs.Cart, logg))
		})

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(svcs.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(svcs.Orders, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(svcs.Orders, logg))
			r.Post("/{orderID}/payments", controllers.InitiatePayment(svcs.Payments, logg))
			r.Get("/{orderID}/payments", controllers.ListOrderPayments(svcs.Payments, logg))
		})

		r.Get("/payments/{paymentID}", controllers.GetPayment(svcs.Payments, logg))
		r.Get("/coupons/validate", controllers.ValidateCoupon(svcs.Coupons, logg))
		r.Get("/coupons/{code}", controllers.GetCouponByCode(svcs.Coupons, logg))

		r.Post("/sellers/apply", controllers.SellerApply(svcs.Sellers, logg))
		r.Get("/sellers/me", controllers.SellerMe(svcs.Sellers, logg))

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", controllers.CreateReview(svcs.Reviews, logg))
			r.Get("/mine", controllers.ListMyReviews(svcs.Reviews, logg))
			r.Delete("/{reviewID}", controllers.DeleteReview(svcs.Reviews, logg))
		})
		r.Post("/reports", controllers.FileReport(svcs.Moderation, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(svcs.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
			r.Delete("/{notificationID}", controllers.DeleteNotification(svcs.Notifications, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleSeller), logg))
			r.Use(middleware.RequireSeller(logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.SellerListProducts(svcs.Catalog, logg))
				r.Post("/", controllers.SellerCreateProduct(svcs.Catalog, logg))
				r.Put("/{productID}", controllers.SellerUpdateProduct(svcs.Catalog, logg))
				r.Post("/{productID}/variants", controllers.SellerAddVariant(svcs.Catalog, logg))
			})
			r.Put("/variants/{variantID}", controllers.SellerUpdateVariant(svcs.Catalog, logg))
			r.Delete("/variants/{variantID}", controllers.SellerRemoveVariant(svcs.Catalog, logg))

			r.Route("/sub-orders", func(r chi.Router) {
				r.Get("/", controllers.SellerListSubOrders(svcs.Orders, logg))
				r.Get("/{subOrderID}", controllers.SellerGetSubOrder(svcs.Orders, logg))
				r.Patch("/{subOrderID}/status", controllers.SellerUpdateSubOrderStatus(svcs.Orders, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.SellerListCoupons(svcs.Coupons, logg))
				r.Post("/", controllers.SellerCreateCoupon(svcs.Coupons, logg))
				r.Post("/{couponID}/deactivate", controllers.SellerDeactivateCoupon(svcs.Coupons, logg))
			})

			r.Post("/appeals", controllers.SellerFileAppeal(svcs.Moderation, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))

			r.Route("/sellers", func(r chi.Router) {
				r.Get("/", controllers.AdminListSellers(svcs.Sellers, logg))
				r.Post("/{sellerID}/review", controllers.AdminReviewSeller(svcs.Sellers, logg))
				r.Post("/{sellerID}/suspend", controllers.AdminSuspendSeller(svcs.Sellers, logg))
				r.Post("/{sellerID}/reinstate", controllers.AdminReinstateSeller(svcs.Sellers, logg))
			})

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateCategory(svcs.Catalog, logg))
				r.Put("/{categoryID}", controllers.AdminUpdateCategory(svcs.Catalog, logg))
				r.Delete("/{categoryID}", controllers.AdminDeleteCategory(svcs.Catalog, logg))
			})

			r.Patch("/products/{productID}/status", controllers.AdminSetProductStatus(svcs.Catalog, logg))
			r.Patch("/users/{userID}/status", controllers.AdminSetUserStatus(svcs.Users, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/{orderID}", controllers.AdminGetOrder(svcs.Orders, logg))
				r.Patch("/{orderID}/status", controllers.AdminUpdateOrderStatus(svcs.Orders, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", controllers.AdminListCoupons(svcs.Coupons, logg))
				r.Post("/", controllers.AdminCreateCoupon(svcs.Coupons, logg))
				r.Post("/{couponID}/deactivate", controllers.AdminDeactivateCoupon(svcs.Coupons, logg))
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", controllers.AdminListReports(svcs.Moderation, logg))
				r.Get("/{reportID}", controllers.AdminGetReport(svcs.Moderation, logg))
				r.Post("/{reportID}/review", controllers.AdminStartReview(svcs.Moderation, logg))
				r.Post("/{reportID}/resolve", controllers.AdminResolveReport(svcs.Moderation, logg))
			})

			r.Route("/appeals", func(r chi.Router) {
				r.Get("/", controllers.AdminListAppeals(svcs.Moderation, logg))
				r.Post("/{appealID}/decision", controllers.AdminDecideAppeal(svcs.Moderation, logg))
			})

			r.Patch("/reviews/{reviewID}/visibility", controllers.AdminSetReviewVisibility(svcs.Reviews, logg))
		})
	})

	return r
}
