package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/stmary/giftshop-backend/api/controllers"
	"github.com/stmary/giftshop-backend/api/routes"
	"github.com/stmary/giftshop-backend/internal/address"
	"github.com/stmary/giftshop-backend/internal/auth"
	"github.com/stmary/giftshop-backend/internal/cart"
	"github.com/stmary/giftshop-backend/internal/categories"
	"github.com/stmary/giftshop-backend/internal/checkout"
	"github.com/stmary/giftshop-backend/internal/media"
	"github.com/stmary/giftshop-backend/internal/orders"
	product "github.com/stmary/giftshop-backend/internal/products"
	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/internal/settings"
	"github.com/stmary/giftshop-backend/internal/users"
	"github.com/stmary/giftshop-backend/pkg/auth/session"
	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
	"github.com/stmary/giftshop-backend/pkg/migrate"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/redis"
	"github.com/stmary/giftshop-backend/pkg/storage/gcs"
	"github.com/stmary/giftshop-backend/pkg/storetime"
)

const shutdownTimeout = 15 * time.Second

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
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, gcsClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	svc, err := buildServices(cfg, logg, dbClient, redisClient, gcsClient, sessionManager, storetime.New(loc))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := routes.NewRouter(cfg, logg, routes.Infra{
		Sessions:    sessionManager,
		RateLimits:  redisClient,
		Idempotency: redisClient,
		Health: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
			"gcs":      gcsClient,
		},
		Metrics:  metrics.NewHTTPMetrics(registry),
		Gatherer: registry,
	}, svc)

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	gcsClient *gcs.Client,
	sessions *session.Manager,
	clock storetime.Clock,
) (routes.Services, error) {
	gormDB := dbClient.DB()
	revalidator := revalidate.NewService(redisClient, logg)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	userRepo := users.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	var (
		out  routes.Services
		errs error
	)
	var err error

	out.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		ResetTokens:    redisClient,
		TxRunner:       dbClient,
		Outbox:         emitter,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	errs = multierr.Append(errs, err)

	out.Users, err = users.NewService(userRepo, revalidator)
	errs = multierr.Append(errs, err)

	out.Categories, err = categories.NewService(categories.NewRepository(gormDB), dbClient, revalidator, logg)
	errs = multierr.Append(errs, err)

	out.Products, err = product.NewService(product.NewRepository(gormDB), clock, revalidator, logg)
	errs = multierr.Append(errs, err)

	out.Settings, err = settings.NewService(settings.ServiceParams{
		Repo:        settings.NewRepository(gormDB),
		Cache:       redisClient,
		TTL:         cfg.Redis.SettingsCacheTTL,
		Revalidator: revalidator,
		Logger:      logg,
	})
	errs = multierr.Append(errs, err)

	out.Cart, err = cart.NewService(cart.ServiceParams{
		Repo:        cartRepo,
		TxRunner:    dbClient,
		Clock:       clock,
		Revalidator: revalidator,
		Logger:      logg,
	})
	errs = multierr.Append(errs, err)

	out.Media, err = media.NewService(gcsClient, media.Limits{
		MaxProofBytes: cfg.Uploads.MaxProofBytes,
		MaxImageBytes: cfg.Uploads.MaxImageBytes,
	}, logg)
	errs = multierr.Append(errs, err)

	out.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:        ordersRepo,
		TxRunner:    dbClient,
		Outbox:      emitter,
		Revalidator: revalidator,
		Logger:      logg,
	})
	errs = multierr.Append(errs, err)

	out.Addresses, err = address.NewService(address.NewRepository(gormDB), dbClient, revalidator, logg)
	errs = multierr.Append(errs, err)

	if errs != nil {
		return out, errs
	}

	out.Checkout, err = checkout.NewService(checkout.ServiceParams{
		TxRunner:    dbClient,
		CartRepo:    cartRepo,
		OrdersRepo:  ordersRepo,
		Settings:    out.Settings,
		Proofs:      out.Media,
		Outbox:      emitter,
		Clock:       clock,
		Revalidator: revalidator,
		Logger:      logg,
	})
	return out, err
}
