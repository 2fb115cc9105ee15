package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/stmary/giftshop-backend/internal/maintenance"
	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/instance"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/redis"
	"github.com/stmary/giftshop-backend/pkg/storetime"
)

const serviceName = "maintenance"

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
		logg.Error(ctx, "maintenance stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "maintenance shut down")
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

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	retention, err := maintenance.NewOutboxRetention(maintenance.OutboxRetentionParams{
		Logger:       logg,
		Outbox:       outbox.NewRepository(dbClient.DB()),
		DLQ:          outbox.NewDLQRepository(dbClient.DB()),
		Retention:    cfg.Maintenance.OutboxRetention,
		DLQRetention: cfg.Maintenance.DLQRetention,
	})
	if err != nil {
		return err
	}

	// The lock outlives one cycle only when a cycle overruns the interval.
	lock, err := maintenance.NewRedisLock(redisClient, redisClient.LockKey(serviceName), 2*cfg.Maintenance.Interval)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	scheduler, err := maintenance.NewScheduler(maintenance.SchedulerParams{
		Logger: logg,
		Lock:   lock,
		Jobs: []maintenance.Job{
			retention,
			maintenance.NewSaleRollover(storetime.New(loc), revalidate.NewService(redisClient, logg)),
		},
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting maintenance scheduler")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, cfg.Service.MetricsAddr, reg) })
	return g.Wait()
}
