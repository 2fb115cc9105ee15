package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db/dbtest"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/outbox/payloads"
	"github.com/stmary/giftshop-backend/pkg/pagination"
)

type harness struct {
	svc  Service
	repo Repository
	db   *gorm.DB
	rec  *revalidate.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	rec := &revalidate.Recorder{}
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		TxRunner:    client,
		Outbox:      outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Revalidator: rec,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{svc: svc, repo: repo, db: client.DB(), rec: rec}
}

func (h *harness) user(t *testing.T, role enums.UserRole) Actor {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", PasswordHash: "hash", FullName: "Marina Fawzy", Role: role}
	if err := h.db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return Actor{UserID: u.ID, Role: role}
}

func (h *harness) order(t *testing.T, owner uuid.UUID, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:        owner,
		Status:        status,
		Subtotal:      decimal.NewFromInt(200),
		DeliveryFee:   decimal.NewFromInt(30),
		TotalAmount:   decimal.NewFromInt(230),
		DeliveryType:  enums.DeliveryTypePickup,
		PaymentMethod: enums.PaymentMethodCash,
		Items: []models.OrderItem{{
			ProductNameEN: "Candle",
			ProductNameAR: "شمعة",
			Quantity:      2,
			Price:         decimal.NewFromInt(100),
		}},
		CreatedAt: createdAt,
	}
	if err := h.repo.Create(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func (h *harness) statusEvents(t *testing.T) []payloads.OrderStatusChangedEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := h.db.Where("event_type = ?", enums.EventOrderStatusChanged).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	out := make([]payloads.OrderStatusChangedEvent, 0, len(rows))
	for _, row := range rows {
		var env outbox.PayloadEnvelope
		if err := json.Unmarshal(row.Payload, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		var ev payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func TestGetUserOrdersNewestFirst(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, enums.UserRoleCustomer)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := h.order(t, owner.UserID, enums.OrderStatusCompleted, base)
	newer := h.order(t, owner.UserID, enums.OrderStatusPendingPayment, base.Add(time.Hour))
	h.order(t, h.user(t, enums.UserRoleCustomer).UserID, enums.OrderStatusPendingPayment, base)

	list, err := h.svc.GetUserOrders(context.Background(), owner.UserID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("unexpected order list %+v", list)
	}
	if list[0].ItemCount != 2 || !list[0].TotalAmount.Equal(decimal.NewFromInt(230)) {
		t.Fatalf("unexpected totals %+v", list[0])
	}
}

func TestGetOrderDetailsAuthorization(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, enums.UserRoleCustomer)
	stranger := h.user(t, enums.UserRoleCustomer)
	admin := h.user(t, enums.UserRoleAdmin)
	order := h.order(t, owner.UserID, enums.OrderStatusPendingPayment, time.Now().UTC())
	ctx := context.Background()

	if _, err := h.svc.GetOrderDetails(ctx, stranger, order.ID); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for stranger, got %v", err)
	}
	mine, err := h.svc.GetOrderDetails(ctx, owner, order.ID)
	if err != nil || mine.Customer != nil {
		t.Fatalf("owner view: %+v %v", mine, err)
	}
	adminView, err := h.svc.GetOrderDetails(ctx, admin, order.ID)
	if err != nil || adminView.Customer == nil {
		t.Fatalf("admin view should include customer: %+v %v", adminView, err)
	}
	if _, err := h.svc.GetOrderDetails(ctx, owner, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelOrderRules(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, enums.UserRoleCustomer)
	other := h.user(t, enums.UserRoleCustomer)
	ctx := context.Background()

	pending := h.order(t, owner.UserID, enums.OrderStatusPendingPayment, time.Now().UTC())
	if _, err := h.svc.CancelOrder(ctx, other, pending.ID); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for non-owner, got %v", err)
	}
	cancelled, err := h.svc.CancelOrder(ctx, owner, pending.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	shipped := h.order(t, owner.UserID, enums.OrderStatusOutForDelivery, time.Now().UTC())
	_, err = h.svc.CancelOrder(ctx, owner, shipped.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	still, _ := h.repo.FindByID(ctx, shipped.ID)
	if still.Status != enums.OrderStatusOutForDelivery {
		t.Fatalf("status changed on rejected cancel: %s", still.Status)
	}

	events := h.statusEvents(t)
	if len(events) != 1 || events[0].ToStatus != enums.OrderStatusCancelled || events[0].FromStatus != enums.OrderStatusPendingPayment {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestVerifyPaymentMapsDecision(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, enums.UserRoleCustomer)
	admin := h.user(t, enums.UserRoleAdmin)
	ctx := context.Background()

	approved := h.order(t, owner.UserID, enums.OrderStatusPendingPayment, time.Now().UTC())
	rejected := h.order(t, owner.UserID, enums.OrderStatusPendingPayment, time.Now().UTC())

	if _, err := h.svc.VerifyPayment(ctx, owner, approved.ID, true); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for customer, got %v", err)
	}
	var untouched models.Order
	if err := h.db.First(&untouched, "id = ?", approved.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if untouched.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("customer verification changed status to %s", untouched.Status)
	}
	got, err := h.svc.VerifyPayment(ctx, admin, approved.ID, true)
	if err != nil || got.Status != enums.OrderStatusProcessing {
		t.Fatalf("approve: %+v %v", got, err)
	}
	got, err = h.svc.VerifyPayment(ctx, admin, rejected.ID, false)
	if err != nil || got.Status != enums.OrderStatusCancelled {
		t.Fatalf("reject: %+v %v", got, err)
	}
	paths := h.rec.AllPaths()
	if len(paths) != 6 || paths[2] != revalidate.OrderPath(approved.ID) {
		t.Fatalf("unexpected revalidation %v", paths)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, enums.UserRoleCustomer)
	admin := h.user(t, enums.UserRoleAdmin)
	order := h.order(t, owner.UserID, enums.OrderStatusProcessing, time.Now().UTC())
	ctx := context.Background()

	if _, err := h.svc.UpdateOrderStatus(ctx, admin, order.ID, "shipped"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := h.svc.UpdateOrderStatus(ctx, admin, order.ID, "ready_for_pickup")
	if err != nil || got.Status != enums.OrderStatusReadyForPickup {
		t.Fatalf("update: %+v %v", got, err)
	}
	if _, err := h.svc.UpdateOrderStatus(ctx, admin, uuid.New(), "completed"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetAllOrdersFiltersAndPaginates(t *testing.T) {
	h := newHarness(t)
	owner := h.user(t, enums.UserRoleCustomer)
	admin := h.user(t, enums.UserRoleAdmin)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		h.order(t, owner.UserID, enums.OrderStatusPendingPayment, base.Add(time.Duration(i)*time.Minute))
	}
	h.order(t, owner.UserID, enums.OrderStatusCompleted, base)
	ctx := context.Background()

	if _, err := h.svc.GetAllOrders(ctx, owner, AdminOrderFilter{}); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.svc.GetAllOrders(ctx, admin, AdminOrderFilter{Status: "lost"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	first, err := h.svc.GetAllOrders(ctx, admin, AdminOrderFilter{
		Status:     "pending_payment",
		Pagination: pagination.Params{Limit: 2},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Items) != 2 || first.NextCursor == "" || first.Items[0].Customer == nil {
		t.Fatalf("unexpected first page %+v", first)
	}
	second, err := h.svc.GetAllOrders(ctx, admin, AdminOrderFilter{
		Status:     "pending_payment",
		Pagination: pagination.Params{Limit: 2, Cursor: first.NextCursor},
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 1 || second.NextCursor != "" {
		t.Fatalf("unexpected second page %+v", second)
	}
}
