package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stmary/giftshop-backend/api/controllers"
	cartcontrollers "github.com/stmary/giftshop-backend/api/controllers/cart"
	ordercontrollers "github.com/stmary/giftshop-backend/api/controllers/orders"
	"github.com/stmary/giftshop-backend/api/controllers/profile"
	"github.com/stmary/giftshop-backend/api/middleware"
	"github.com/stmary/giftshop-backend/api/responses"
	"github.com/stmary/giftshop-backend/internal/address"
	"github.com/stmary/giftshop-backend/internal/auth"
	"github.com/stmary/giftshop-backend/internal/cart"
	"github.com/stmary/giftshop-backend/internal/categories"
	checkoutsvc "github.com/stmary/giftshop-backend/internal/checkout"
	"github.com/stmary/giftshop-backend/internal/media"
	"github.com/stmary/giftshop-backend/internal/orders"
	product "github.com/stmary/giftshop-backend/internal/products"
	"github.com/stmary/giftshop-backend/internal/settings"
	"github.com/stmary/giftshop-backend/internal/users"
	"github.com/stmary/giftshop-backend/pkg/auth/session"
	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
)

const passwordResetEmailLimit = 3

// Services bundles every domain service exposed over HTTP.
type Services struct {
	Auth       auth.Service
	Users      users.Service
	Categories categories.Service
	Products   product.Service
	Settings   settings.Service
	Cart       cart.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	Addresses  address.Service
	Media      media.Service
}

// Infra holds the shared clients used by middleware and health checks.
// Nil fields disable the matching middleware.
type Infra struct {
	Sessions    session.AccessSessionChecker
	RateLimits  middleware.RateLimiterStore
	Idempotency middleware.IdempotencyStore
	Health      map[string]controllers.Pinger
	Metrics     *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, infra.Metrics),
		middleware.CORS(cfg.CORS),
	)

	limits := cfg.AuthRateLimit
	throttle := func(limit middleware.RateLimit) func(http.Handler) http.Handler {
		return middleware.Throttle(limit, infra.RateLimits, logg)
	}
	loginLimit := throttle(middleware.RateLimit{Name: "login", Window: limits.LoginWindow, PerIP: limits.LoginIPLimit})
	registerLimit := throttle(middleware.RateLimit{Name: "register", Window: limits.RegisterWindow, PerIP: limits.RegisterLimit})
	resetLimit := throttle(middleware.RateLimit{Name: "password-reset", Window: limits.LoginWindow, PerIP: limits.LoginIPLimit, PerEmail: passwordResetEmailLimit})

	authenticated := middleware.Auth(cfg.JWT, infra.Sessions, logg)
	idempotent := func(ttl time.Duration) func(http.Handler) http.Handler {
		return middleware.Idempotent(infra.Idempotency, logg, ttl)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.Health))
	})
	if infra.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(registerLimit).Post("/register", controllers.AuthRegister(svc.Auth, logg))
			r.With(loginLimit).Post("/login", controllers.AuthLogin(svc.Auth, logg))
			r.With(authenticated).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
			r.With(resetLimit).Post("/password/forgot", controllers.AuthForgotPassword(svc.Auth, logg))
			r.Post("/password/reset", controllers.AuthResetPassword(svc.Auth, logg))
		})

		r.Get("/categories", controllers.CategoryList(svc.Categories, false, logg))
		r.Get("/categories/{categoryId}", controllers.CategoryGet(svc.Categories, false, logg))
		r.Get("/products", controllers.ProductList(svc.Products, false, logg))
		r.Get("/products/{productId}", controllers.ProductGet(svc.Products, false, logg))
		r.Get("/settings", controllers.SettingsGet(svc.Settings, logg))

		// Profile forms answer {success}|{error}, rejections included.
		r.Route("/profile", func(r chi.Router) {
			r.Use(middleware.AuthWith(cfg.JWT, infra.Sessions, logg, responses.WriteProfileError))
			r.Post("/email", profile.UpdateEmail(svc.Users, logg))
			r.Post("/name", profile.UpdateName(svc.Users, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Get("/me", controllers.Me(svc.Users, logg))
			r.Post("/me/phone", controllers.MeUpdatePhone(svc.Users, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
				r.Post("/", cartcontrollers.CartAdd(svc.Cart, logg))
				r.With(idempotent(middleware.AdminIdempotencyTTL)).Post("/merge", cartcontrollers.CartMerge(svc.Cart, logg))
				r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(svc.Cart, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
			})

			r.With(idempotent(middleware.OrderIdempotencyTTL)).Post("/checkout", controllers.Checkout(svc.Checkout, cfg.Uploads.MaxProofBytes, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(svc.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
				r.With(idempotent(middleware.OrderIdempotencyTTL)).Post("/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
			})

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(svc.Addresses, logg))
				r.Post("/", controllers.AddressCreate(svc.Addresses, logg))
				r.Put("/{addressId}", controllers.AddressUpdate(svc.Addresses, logg))
				r.Delete("/{addressId}", controllers.AddressDelete(svc.Addresses, logg))
				r.Post("/{addressId}/default", controllers.AddressSetDefault(svc.Addresses, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
			r.With(idempotent(middleware.AdminIdempotencyTTL)).Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(svc.Orders, logg))
			r.With(idempotent(middleware.AdminIdempotencyTTL)).Post("/{orderId}/verify-payment", ordercontrollers.AdminVerifyPayment(svc.Orders, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(svc.Categories, true, logg))
			r.Post("/", controllers.AdminCategoryCreate(svc.Categories, logg))
			r.Get("/{categoryId}", controllers.CategoryGet(svc.Categories, true, logg))
			r.Put("/{categoryId}", controllers.AdminCategoryUpdate(svc.Categories, logg))
			r.Delete("/{categoryId}", controllers.AdminCategoryDelete(svc.Categories, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(svc.Products, true, logg))
			r.Post("/", controllers.AdminProductCreate(svc.Products, logg))
			r.Get("/{productId}", controllers.ProductGet(svc.Products, true, logg))
			r.Put("/{productId}", controllers.AdminProductUpdate(svc.Products, logg))
			r.Post("/{productId}/toggle-active", controllers.AdminProductToggle(svc.Products, logg))
			r.Delete("/{productId}", controllers.AdminProductDelete(svc.Products, logg))
		})

		r.Put("/settings", controllers.AdminSettingsUpdate(svc.Settings, logg))
		r.Post("/media", controllers.AdminMediaUpload(svc.Media, cfg.Uploads.MaxImageBytes, logg))
	})

	return r
}
