package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/settings"
	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/outbox/idempotency"
	"github.com/stmary/giftshop-backend/pkg/outbox/payloads"
	"github.com/stmary/giftshop-backend/pkg/outbox/registry"
)

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "gs:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type stubOrders struct {
	orders map[uuid.UUID]*models.Order
	err    error
}

func (s *stubOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

type stubSettings struct{}

func (stubSettings) Get(context.Context) (*settings.SettingsDTO, error) {
	return &settings.SettingsDTO{StoreNameEN: "St. Mary Library Gift Shop", Currency: "EGP", ContactPhone: "01012345678"}, nil
}

type recordingQueue struct {
	tasks []Task
}

func (q *recordingQueue) Enqueue(_ context.Context, task Task) bool {
	q.tasks = append(q.tasks, task)
	return true
}

type consumerHarness struct {
	consumer *Consumer
	orders   *stubOrders
	queue    *recordingQueue
	order    *models.Order
}

func newConsumerHarness(t *testing.T) *consumerHarness {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	manager, err := idempotency.NewGuard(&memoryIdempotency{keys: map[string]bool{}}, ConsumerName, time.Hour)
	if err != nil {
		t.Fatalf("idempotency: %v", err)
	}
	address := "12 Tahrir Street, Cairo"
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		User:          &models.User{Email: "mina@example.com", FullName: "Mina <Adel>"},
		Status:        enums.OrderStatusPendingPayment,
		Subtotal:      decimal.NewFromInt(500),
		DeliveryFee:   decimal.NewFromInt(50),
		TotalAmount:   decimal.NewFromInt(550),
		DeliveryType:  enums.DeliveryTypeDelivery,
		Address:       &address,
		PaymentMethod: enums.PaymentMethodInstaPay,
		Items: []models.OrderItem{{
			ProductNameEN: "Icon of St. Mary",
			Quantity:      2,
			Price:         decimal.NewFromInt(250),
		}},
	}
	h := &consumerHarness{
		orders: &stubOrders{orders: map[uuid.UUID]*models.Order{order.ID: order}},
		queue:  &recordingQueue{},
		order:  order,
	}
	h.consumer, err = NewConsumer(ConsumerParams{
		Subscription: noopReceiver{},
		Registry:     reg,
		Idempotency:  manager,
		Orders:       h.orders,
		Settings:     stubSettings{},
		Queue:        h.queue,
		Config:       ConsumerConfig{AdminEmail: "admin@example.com", PublicBaseURL: "https://shop.example/"},
		Logger:       logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return h
}

type noopReceiver struct{}

type pubsubMessage = pubsub.Message

func (noopReceiver) Receive(context.Context, func(context.Context, *pubsubMessage)) error { return nil }

func message(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, eventID uuid.UUID, data any) (map[string]string, []byte) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: eventID.String(), OccurredAt: time.Now().UTC(), Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return map[string]string{
		registry.AttrEventType:     string(eventType),
		registry.AttrAggregateType: string(aggregate),
		registry.AttrEventID:       eventID.String(),
	}, body
}

func TestOrderCreatedQueuesReceiptAndAdminEmail(t *testing.T) {
	h := newConsumerHarness(t)
	attrs, body := message(t, enums.EventOrderCreated, enums.AggregateOrder, uuid.New(), payloads.OrderCreatedEvent{OrderID: h.order.ID})

	if res := h.consumer.process(context.Background(), "m1", attrs, body); res.nack {
		t.Fatalf("unexpected nack")
	}
	if len(h.queue.tasks) != 2 {
		t.Fatalf("expected two emails, got %d", len(h.queue.tasks))
	}
	receipt := h.queue.tasks[0]
	if receipt.Kind != KindOrderReceipt || receipt.Email.To != "mina@example.com" {
		t.Fatalf("unexpected receipt task %+v", receipt)
	}
	if !strings.Contains(receipt.Email.HTML, "Icon of St. Mary") || !strings.Contains(receipt.Email.HTML, "550.00 EGP") {
		t.Fatalf("receipt missing order lines:\n%s", receipt.Email.HTML)
	}
	if strings.Contains(receipt.Email.HTML, "Mina <Adel>") {
		t.Fatalf("customer name must be escaped")
	}
	if !strings.Contains(receipt.Email.HTML, "https://shop.example/orders/"+h.order.ID.String()) {
		t.Fatalf("receipt missing order link")
	}
	if h.queue.tasks[1].Email.To != "admin@example.com" {
		t.Fatalf("expected admin copy, got %+v", h.queue.tasks[1])
	}
}

func TestDuplicateEventIsSkipped(t *testing.T) {
	h := newConsumerHarness(t)
	eventID := uuid.New()
	attrs, body := message(t, enums.EventOrderStatusChanged, enums.AggregateOrder, eventID, payloads.OrderStatusChangedEvent{
		OrderID:  h.order.ID,
		ToStatus: enums.OrderStatusProcessing,
		Reason:   "payment approved",
	})

	h.consumer.process(context.Background(), "m1", attrs, body)
	h.consumer.process(context.Background(), "m2", attrs, body)

	if len(h.queue.tasks) != 1 {
		t.Fatalf("expected one status email, got %d", len(h.queue.tasks))
	}
	if !strings.Contains(h.queue.tasks[0].Email.Subject, "processing") || !strings.Contains(h.queue.tasks[0].Email.HTML, "Payment approved.") {
		t.Fatalf("unexpected status email %+v", h.queue.tasks[0].Email)
	}
}

func TestTransientLoadFailureNacksAndReleasesMarker(t *testing.T) {
	h := newConsumerHarness(t)
	h.orders.err = errors.New("connection refused")
	attrs, body := message(t, enums.EventOrderCreated, enums.AggregateOrder, uuid.New(), payloads.OrderCreatedEvent{OrderID: h.order.ID})

	if res := h.consumer.process(context.Background(), "m1", attrs, body); !res.nack {
		t.Fatalf("expected nack on transient failure")
	}
	h.orders.err = nil
	if res := h.consumer.process(context.Background(), "m1", attrs, body); res.nack {
		t.Fatalf("redelivery should succeed")
	}
	if len(h.queue.tasks) != 2 {
		t.Fatalf("expected emails after redelivery, got %d", len(h.queue.tasks))
	}
}

func TestUnknownOrMalformedEventsAreAcked(t *testing.T) {
	h := newConsumerHarness(t)
	if res := h.consumer.process(context.Background(), "m1", map[string]string{registry.AttrEventType: "license_changed"}, []byte("{}")); res.nack {
		t.Fatalf("unknown events must be acked")
	}
	attrs, body := message(t, enums.EventOrderCreated, enums.AggregateOrder, uuid.New(), payloads.OrderCreatedEvent{OrderID: uuid.New()})
	if res := h.consumer.process(context.Background(), "m2", attrs, body); res.nack {
		t.Fatalf("missing orders must be acked")
	}
	if len(h.queue.tasks) != 0 {
		t.Fatalf("no emails expected")
	}
}

func TestPasswordResetEmail(t *testing.T) {
	h := newConsumerHarness(t)
	attrs, body := message(t, enums.EventPasswordResetRequested, enums.AggregateUser, uuid.New(), payloads.PasswordResetRequestedEvent{
		UserID:    uuid.New(),
		Email:     "mina@example.com",
		FullName:  "Mina",
		Token:     "tok123",
		ExpiresAt: time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC),
	})
	h.consumer.process(context.Background(), "m1", attrs, body)
	if len(h.queue.tasks) != 1 || h.queue.tasks[0].Kind != KindPasswordReset {
		t.Fatalf("expected reset email, got %+v", h.queue.tasks)
	}
	if !strings.Contains(h.queue.tasks[0].Email.HTML, "https://shop.example/reset-password?token=tok123") {
		t.Fatalf("reset link missing:\n%s", h.queue.tasks[0].Email.HTML)
	}
}
