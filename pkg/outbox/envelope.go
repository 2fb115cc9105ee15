package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/enums"
)

// ActorRef names the user whose action produced an event.
type ActorRef struct {
	UserID uuid.UUID      `json:"userId"`
	Role   enums.UserRole `json:"role,omitempty"`
}

// PayloadEnvelope is both the outbox_events.payload column and the Pub/Sub
// message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var ErrEmptyPayload = errors.New("outbox: envelope carries no data")

// ParseEnvelope decodes raw and checks that it names its event.
func ParseEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("outbox: decode envelope: %w", err)
	}
	if env.Version <= 0 {
		return PayloadEnvelope{}, fmt.Errorf("outbox: envelope version %d", env.Version)
	}
	return env, nil
}

// DecodeData unmarshals the event body into dst; a missing or null body is
// ErrEmptyPayload.
func (e PayloadEnvelope) DecodeData(dst any) error {
	body := bytes.TrimSpace(e.Data)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return ErrEmptyPayload
	}
	return json.Unmarshal(body, dst)
}
