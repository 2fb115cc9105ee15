package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/stmary/giftshop-backend/internal/notifications"
	"github.com/stmary/giftshop-backend/internal/orders"
	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/internal/settings"
	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/instance"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
	"github.com/stmary/giftshop-backend/pkg/outbox/idempotency"
	"github.com/stmary/giftshop-backend/pkg/outbox/registry"
	"github.com/stmary/giftshop-backend/pkg/pubsub"
	"github.com/stmary/giftshop-backend/pkg/redis"
)

const serviceName = "worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Options{VerifySubscription: true}, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	processed, err := idempotency.NewGuard(redisClient, notifications.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo:        settings.NewRepository(dbClient.DB()),
		Cache:       redisClient,
		TTL:         cfg.Redis.SettingsCacheTTL,
		Revalidator: revalidate.NewService(redisClient, logg),
		Logger:      logg,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	queue, err := notifications.NewQueue(notifications.QueueParams{
		Mailer:     selectMailer(ctx, cfg, logg),
		Workers:    cfg.Email.Workers,
		BufferSize: cfg.Email.BufferSize,
		Metrics:    metrics.NewEmailMetrics(reg),
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription: pubsubClient.OrdersSubscription(),
		Registry:     eventRegistry,
		Idempotency:  processed,
		Orders:       orders.NewRepository(dbClient.DB()),
		Settings:     settingsService,
		Queue:        queue,
		Config: notifications.ConsumerConfig{
			AdminEmail:    cfg.App.AdminEmail,
			PublicBaseURL: cfg.App.PublicBaseURL,
		},
		Logger: logg,
	})
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: map[string]pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Consumer:    consumer,
		Queue:       queue,
		MetricsAddr: cfg.Service.MetricsAddr,
		Gatherer:    reg,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}

func selectMailer(ctx context.Context, cfg *config.Config, logg *logger.Logger) notifications.Mailer {
	if cfg.FeatureFlags.LogEmails || strings.TrimSpace(cfg.Sendgrid.APIKey) == "" {
		logg.Warn(ctx, "sendgrid disabled, emails will be logged only")
		return notifications.LogMailer{Logger: logg}
	}
	mailer, err := notifications.NewSendGridMailer(cfg.Sendgrid)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "sendgrid unavailable, emails will be logged only")
		return notifications.LogMailer{Logger: logg}
	}
	return mailer
}
