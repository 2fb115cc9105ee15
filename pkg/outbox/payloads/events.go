package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/enums"
)

// OrderCreatedEvent is emitted in the checkout transaction; the worker turns it
// into a customer receipt and an admin notification.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	DeliveryType  enums.DeliveryType  `json:"delivery_type"`
	TotalAmount   string              `json:"total_amount"`
}

// OrderStatusChangedEvent covers admin transitions, payment verification and
// customer cancellation.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedBy  uuid.UUID         `json:"changed_by"`
	Reason     string            `json:"reason,omitempty"`
}

// PasswordResetRequestedEvent carries the single-use token to be mailed.
type PasswordResetRequestedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
