package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionParams struct {
	Logger       *logger.Logger
	Outbox       publishedPurger
	DLQ          deadLetterPurger
	Retention    time.Duration
	DLQRetention time.Duration
}

// OutboxRetention deletes published outbox rows and old dead letters.
// Unpublished rows are never touched.
type OutboxRetention struct {
	logg         *logger.Logger
	outbox       publishedPurger
	dlq          deadLetterPurger
	retention    time.Duration
	dlqRetention time.Duration
	now          func() time.Time
}

func NewOutboxRetention(params OutboxRetentionParams) (*OutboxRetention, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Outbox == nil || params.DLQ == nil {
		return nil, errors.New("outbox and dlq repositories required")
	}
	if params.Retention <= 0 || params.DLQRetention <= 0 {
		return nil, errors.New("retention windows must be positive")
	}
	return &OutboxRetention{
		logg:         params.Logger,
		outbox:       params.Outbox,
		dlq:          params.DLQ,
		retention:    params.Retention,
		dlqRetention: params.DLQRetention,
		now:          time.Now,
	}, nil
}

func (j *OutboxRetention) Name() string { return "outbox-retention" }

func (j *OutboxRetention) Run(ctx context.Context) error {
	now := j.now().UTC()
	published, err := j.outbox.DeletePublishedBefore(ctx, now.Add(-j.retention))
	if err != nil {
		return fmt.Errorf("purge published outbox rows: %w", err)
	}
	deadLetters, err := j.dlq.DeleteFailedBefore(ctx, now.Add(-j.dlqRetention))
	if err != nil {
		return fmt.Errorf("purge dead letters: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_deleted":   published,
		"dead_letter_deleted": deadLetters,
	}), "outbox retention complete")
	return nil
}
