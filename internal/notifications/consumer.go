package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/settings"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/outbox/idempotency"
	"github.com/stmary/giftshop-backend/pkg/outbox/payloads"
	"github.com/stmary/giftshop-backend/pkg/outbox/registry"
)

// ConsumerName identifies the email consumer in idempotency keys.
const ConsumerName = "order-emails"

// Email kinds used as metric labels.
const (
	KindOrderReceipt  = "order_receipt"
	KindOrderAdmin    = "order_admin"
	KindOrderStatus   = "order_status"
	KindPasswordReset = "password_reset"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type settingsReader interface {
	Get(ctx context.Context) (*settings.SettingsDTO, error)
}

type enqueuer interface {
	Enqueue(ctx context.Context, task Task) bool
}

// ConsumerConfig holds the addresses used in rendered emails.
type ConsumerConfig struct {
	AdminEmail    string
	PublicBaseURL string
}

// Consumer turns order and account events into queued emails.
type Consumer struct {
	subscription receiver
	registry     *registry.EventRegistry
	claims       *idempotency.Guard
	orders       orderLoader
	settings     settingsReader
	queue        enqueuer
	cfg          ConsumerConfig
	logg         *logger.Logger
}

// ConsumerParams bundles the consumer dependencies.
type ConsumerParams struct {
	Subscription receiver
	Registry     *registry.EventRegistry
	Idempotency  *idempotency.Guard
	Orders       orderLoader
	Settings     settingsReader
	Queue        enqueuer
	Config       ConsumerConfig
	Logger       *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Orders == nil || params.Settings == nil {
		return nil, fmt.Errorf("order and settings loaders required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("email queue required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	params.Config.PublicBaseURL = strings.TrimRight(params.Config.PublicBaseURL, "/")
	return &Consumer{
		subscription: params.Subscription,
		registry:     params.Registry,
		claims:       params.Idempotency,
		orders:       params.Orders,
		settings:     params.Settings,
		queue:        params.Queue,
		cfg:          params.Config,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

// process acks everything except transient failures; emails are best effort.
func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attributes[registry.AttrEventType],
	})

	resolved, err := c.registry.ResolveMessage(attributes, data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable event", err)
		return processResult{}
	}
	eventID, err := resolved.EventID()
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	claimed, err := c.claims.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	tasks, err := c.tasksFor(ctx, resolved.Payload)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "order for event no longer exists")
			return processResult{}
		}
		c.logg.Error(logCtx, "prepare emails failed", err)
		if err := c.claims.Release(ctx, eventID); err != nil {
			c.logg.Error(logCtx, "release event claim", err)
		}
		return processResult{nack: true}
	}
	for _, task := range tasks {
		c.queue.Enqueue(logCtx, task)
	}
	return processResult{}
}

func (c *Consumer) tasksFor(ctx context.Context, payload any) ([]Task, error) {
	store, err := c.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return c.orderCreated(ctx, store, p)
	case *payloads.OrderStatusChangedEvent:
		return c.orderStatusChanged(ctx, store, p)
	case *payloads.PasswordResetRequestedEvent:
		return c.passwordReset(store, p)
	default:
		return nil, nil
	}
}

func (c *Consumer) orderCreated(ctx context.Context, store *settings.SettingsDTO, p *payloads.OrderCreatedEvent) ([]Task, error) {
	order, err := c.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if order.User != nil && order.User.Email != "" {
		data := c.orderView(store, order)
		data.Subject = fmt.Sprintf("Your order #%s", data.OrderRef)
		task, err := c.task(KindOrderReceipt, TemplateOrderReceipt, order.User.Email, order.User.FullName, data)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if c.cfg.AdminEmail != "" {
		data := c.orderView(store, order)
		data.Subject = fmt.Sprintf("New order #%s (%s %s)", data.OrderRef, data.Total, data.Currency)
		task, err := c.task(KindOrderAdmin, TemplateOrderAdmin, c.cfg.AdminEmail, store.StoreNameEN, data)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (c *Consumer) orderStatusChanged(ctx context.Context, store *settings.SettingsDTO, p *payloads.OrderStatusChangedEvent) ([]Task, error) {
	order, err := c.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if order.User == nil || order.User.Email == "" {
		return nil, nil
	}
	data := c.orderView(store, order)
	data.StatusLabel = statusLabel(p.ToStatus)
	data.Subject = fmt.Sprintf("Order #%s is %s", data.OrderRef, data.StatusLabel)
	if p.Reason != "" {
		data.Reason = strings.ToUpper(p.Reason[:1]) + p.Reason[1:] + "."
	}
	task, err := c.task(KindOrderStatus, TemplateOrderStatus, order.User.Email, order.User.FullName, data)
	if err != nil {
		return nil, err
	}
	return []Task{task}, nil
}

func (c *Consumer) passwordReset(store *settings.SettingsDTO, p *payloads.PasswordResetRequestedEvent) ([]Task, error) {
	data := c.baseView(store)
	data.Subject = "Reset your password"
	data.CustomerName = p.FullName
	data.ResetURL = fmt.Sprintf("%s/reset-password?token=%s", c.cfg.PublicBaseURL, p.Token)
	data.ExpiresAt = p.ExpiresAt.UTC().Format("15:04 MST, 2 Jan 2006")
	task, err := c.task(KindPasswordReset, TemplatePasswordReset, p.Email, p.FullName, data)
	if err != nil {
		return nil, err
	}
	return []Task{task}, nil
}

func (c *Consumer) task(kind, template, to, toName string, data view) (Task, error) {
	html, err := render(template, data)
	if err != nil {
		return Task{}, err
	}
	return Task{Kind: kind, Email: Email{To: to, ToName: toName, Subject: data.Subject, HTML: html}}, nil
}

func (c *Consumer) baseView(store *settings.SettingsDTO) view {
	return view{
		StoreName:    store.StoreNameEN,
		ContactPhone: store.ContactPhone,
		ContactEmail: store.ContactEmail,
		Currency:     store.Currency,
	}
}

func (c *Consumer) orderView(store *settings.SettingsDTO, order *models.Order) view {
	data := c.baseView(store)
	data.OrderRef = strings.ToUpper(order.ID.String()[:8])
	data.PaymentMethod = string(order.PaymentMethod)
	data.PaymentLabel = paymentLabel(order.PaymentMethod)
	data.DeliveryLabel = deliveryLabel(order.DeliveryType)
	data.Subtotal = money(order.Subtotal)
	data.DeliveryFee = money(order.DeliveryFee)
	data.Total = money(order.TotalAmount)
	data.OrderURL = fmt.Sprintf("%s/orders/%s", c.cfg.PublicBaseURL, order.ID)
	data.AdminURL = fmt.Sprintf("%s/admin/orders", c.cfg.PublicBaseURL)
	if order.User != nil {
		data.CustomerName = order.User.FullName
		data.CustomerEmail = order.User.Email
	}
	if order.Address != nil {
		data.Address = *order.Address
	}
	if order.Phone != nil {
		data.Phone = *order.Phone
	}
	if order.Notes != nil {
		data.Notes = *order.Notes
	}
	if order.PaymentProofURL != nil {
		data.PaymentProofURL = *order.PaymentProofURL
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, viewItem{
			Name:      item.ProductNameEN,
			Quantity:  item.Quantity,
			LineTotal: money(item.LineTotal()),
		})
	}
	return data
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func paymentLabel(m enums.PaymentMethod) string {
	if m == enums.PaymentMethodInstaPay {
		return "InstaPay"
	}
	return "Cash"
}

func deliveryLabel(d enums.DeliveryType) string {
	if d == enums.DeliveryTypeDelivery {
		return "Home delivery"
	}
	return "Store pickup"
}

func statusLabel(s enums.OrderStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}
