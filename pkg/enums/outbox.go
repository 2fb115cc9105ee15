package enums

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateUser  OutboxAggregateType = "user"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateUser}

func (a OutboxAggregateType) IsValid() bool { return oneOf(a, aggregateTypes) }

// OutboxEventType maps to outbox_events.event_type and the Pub/Sub
// event_type attribute.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderStatusChanged     OutboxEventType = "order_status_changed"
	EventPasswordResetRequested OutboxEventType = "password_reset_requested"
)

var outboxEventTypes = []OutboxEventType{EventOrderCreated, EventOrderStatusChanged, EventPasswordResetRequested}

func (e OutboxEventType) IsValid() bool { return oneOf(e, outboxEventTypes) }

func ParseOutboxEventType(raw string) (OutboxEventType, error) {
	return parseOneOf(raw, outboxEventTypes, "outbox event type")
}

// OutboxDLQReason records why an event was parked in outbox_dlq.
type OutboxDLQReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQReason = "non_retryable"
)
