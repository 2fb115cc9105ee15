package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

const envelopeVersion = 1

var errNoTransaction = errors.New("outbox: emit requires the caller's transaction")

// DomainEvent is a state change a service wants published once its
// transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	// Version defaults to the current envelope version.
	Version    int
	OccurredAt time.Time
}

// Emitter is what producing services depend on.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type inserter interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
}

// Service writes domain events into outbox_events alongside the business
// rows they describe; the outbox publisher ships them later.
type Service struct {
	repo  inserter
	logg  *logger.Logger
	clock func() time.Time
	ids   func() uuid.UUID
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	svc := &Service{logg: logg, clock: time.Now, ids: uuid.New}
	if repo != nil {
		svc.repo = repo
	}
	return svc
}

// Emit inserts event within tx, so the event exists if and only if the
// surrounding state change commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTransaction
	}
	row, err := s.rowFor(event)
	if err != nil {
		return err
	}
	if s.repo == nil {
		return errors.New("outbox: no repository configured")
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("outbox: insert %s: %w", row.EventType, err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       row.ID.String(),
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
		}), "outbox event staged")
	}
	return nil
}

// rowFor validates event and wraps its data in the published envelope. The
// envelope's event id doubles as the row's primary key.
func (s *Service) rowFor(event DomainEvent) (models.OutboxEvent, error) {
	switch {
	case !event.EventType.IsValid():
		return models.OutboxEvent{}, fmt.Errorf("outbox: unknown event type %q", event.EventType)
	case !event.AggregateType.IsValid():
		return models.OutboxEvent{}, fmt.Errorf("outbox: unknown aggregate type %q", event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return models.OutboxEvent{}, fmt.Errorf("outbox: %s event has no aggregate id", event.EventType)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: encode %s data: %w", event.EventType, err)
	}

	id := s.ids()
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = s.clock()
	}
	version := event.Version
	if version <= 0 {
		version = envelopeVersion
	}

	payload, err := json.Marshal(PayloadEnvelope{
		Version:    version,
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("outbox: encode envelope: %w", err)
	}

	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}
