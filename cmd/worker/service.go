package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
)

const defaultDrainTimeout = 30 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

type emailQueue interface {
	Start(ctx context.Context)
	Close(ctx context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies map[string]pinger
	Consumer     consumer
	Queue        emailQueue
	MetricsAddr  string
	Gatherer     prometheus.Gatherer
	DrainTimeout time.Duration
}

// Service runs the order-events consumer alongside the in-process email
// queue. On shutdown the consumer stops first so no new tasks arrive, then
// the queue drains what it already holds.
type Service struct {
	logg         *logger.Logger
	deps         map[string]pinger
	consumer     consumer
	queue        emailQueue
	metricsAddr  string
	gatherer     prometheus.Gatherer
	drainTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	if params.Queue == nil {
		return nil, errors.New("email queue is required")
	}
	drain := params.DrainTimeout
	if drain <= 0 {
		drain = defaultDrainTimeout
	}
	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &Service{
		logg:         params.Logger,
		deps:         params.Dependencies,
		consumer:     params.Consumer,
		queue:        params.Queue,
		metricsAddr:  params.MetricsAddr,
		gatherer:     gatherer,
		drainTimeout: drain,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run blocks until ctx is cancelled or the consumer fails.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	s.queue.Start(ctx)
	s.logg.Info(ctx, "email queue started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("order events consumer: %w", err)
		}
		return nil
	})
	g.Go(func() error { return metrics.Serve(gctx, s.metricsAddr, s.gatherer) })
	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancel()
	if err := s.queue.Close(drainCtx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "email queue did not drain before timeout")
		return multierr.Append(runErr, fmt.Errorf("drain email queue: %w", err))
	}
	s.logg.Info(ctx, "email queue drained")
	return runErr
}
