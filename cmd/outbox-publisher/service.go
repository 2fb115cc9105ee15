package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/metrics"
	"github.com/stmary/giftshop-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	DeadLetter(ctx context.Context, event models.OutboxEvent, reason enums.OutboxDLQReason, cause error) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               pinger
	PubSub           pinger
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service relays outbox_events rows to Pub/Sub. A row that fails to publish
// stays pending and is retried on later polls; once it has failed
// maxAttempts times, or can never succeed, it moves to outbox_dlq.
type Service struct {
	logg       *logger.Logger
	deps       map[string]pinger
	repo       outboxRepository
	registry   registryResolver
	publishers publisherFactory
	metrics    *metrics.OutboxMetrics

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil || params.PubSub == nil:
		return nil, errors.New("database and pubsub clients are required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.PublisherFactory == nil:
		return nil, errors.New("publisher factory is required")
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:           params.Logger,
		deps:           map[string]pinger{"database": params.DB, "pubsub": params.PubSub},
		repo:           params.Repository,
		registry:       params.Registry,
		publishers:     params.PublisherFactory,
		metrics:        params.Metrics,
		batchSize:      positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:    positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:   positiveOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, defaultPollInterval),
		publishTimeout: positiveOr(cfg.PublishTimeout, defaultPublishTimeout),
	}, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run drains the outbox until ctx ends. A full batch is followed
// immediately by the next one; an empty batch waits one poll interval and a
// failed one backs off exponentially.
func (s *Service) Run(ctx context.Context) error {
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			return fmt.Errorf("%s unreachable: %w", name, err)
		}
	}

	var backoff time.Duration
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch incomplete", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = backoff
		case processed == 0:
			backoff = 0
			wait = s.pollInterval
		default:
			backoff = 0
			continue
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// pending is a row whose message has been handed to the client but whose
// server ack has not been awaited yet.
type pending struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// processBatch hands every row of one batch to the Pub/Sub client before
// awaiting any acks, so the client can bundle them. Bookkeeping errors are
// collected per row and do not stop the batch.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	rows, err := s.repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	inflight := make([]pending, 0, len(rows))
	for _, row := range rows {
		inflight = append(inflight, s.send(publishCtx, row))
	}

	var errs error
	for _, p := range inflight {
		if p.err == nil {
			_, p.err = p.result.Get(publishCtx)
		}
		errs = multierr.Append(errs, s.settle(ctx, p))
	}
	return len(rows), errs
}

func (s *Service) send(ctx context.Context, row models.OutboxEvent) pending {
	p := pending{event: row}
	p.resolved, p.err = s.registry.Resolve(row)
	if p.err != nil {
		return p
	}

	topic := p.resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
		return p
	}

	attrs := registry.Attributes(row)
	attrs["created_at"] = row.CreatedAt.UTC().Format(time.RFC3339Nano)
	p.result = pub.Publish(ctx, &gcppubsub.Message{Data: row.Payload, Attributes: attrs})
	if p.result == nil {
		p.err = registry.NewNonRetryableError(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	return p
}

// settle records the outcome of one row.
func (s *Service) settle(ctx context.Context, p pending) error {
	row := p.event
	logCtx := s.logg.WithFields(ctx, rowFields(p))

	if p.err == nil {
		if err := s.repo.MarkPublished(ctx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		s.metrics.IncPublished(string(row.EventType))
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	reason, terminal := s.verdict(row, p.err)
	logCtx = s.logg.WithField(logCtx, "error", p.err.Error())
	if !terminal {
		s.logg.Warn(logCtx, "outbox publish failed, will retry")
		s.metrics.IncFailed(string(row.EventType))
		if err := s.repo.MarkFailed(ctx, row.ID, p.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		return nil
	}

	s.logg.Warn(s.logg.WithField(logCtx, "dlq_reason", string(reason)), "outbox event dead-lettered")
	if err := s.repo.DeadLetter(ctx, row, reason, p.err); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	s.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}

// verdict decides whether a failed row is retried or parked, and why.
func (s *Service) verdict(row models.OutboxEvent, err error) (enums.OutboxDLQReason, bool) {
	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		return enums.OutboxDLQReasonNonRetryable, true
	}
	if row.AttemptCount+1 >= s.maxAttempts {
		return enums.OutboxDLQReasonMaxAttempts, true
	}
	return "", false
}

func rowFields(p pending) map[string]any {
	fields := map[string]any{
		"outbox_id":      p.event.ID.String(),
		"event_type":     string(p.event.EventType),
		"aggregate_type": string(p.event.AggregateType),
		"aggregate_id":   p.event.AggregateID.String(),
		"attempt":        p.event.AttemptCount + 1,
	}
	if p.resolved != nil {
		fields["topic"] = p.resolved.Descriptor.Topic
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// nextBackoff doubles current, starting from base and capped at ceiling.
func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	return min(max(current, base)*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func gcpPublishers(lookup func(topic string) *gcppubsub.Publisher) publisherFactory {
	return func(topic string) publisher {
		if p := lookup(topic); p != nil {
			return gcpPublisher{p}
		}
		return nil
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}
