package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/outbox"
	"github.com/stmary/giftshop-backend/pkg/outbox/payloads"
	"github.com/stmary/giftshop-backend/pkg/pagination"
)

// Service exposes order tracking for customers and order management for admins.
type Service interface {
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	GetOrderDetails(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	GetAllOrders(ctx context.Context, actor Actor, filter AdminOrderFilter) (*AdminOrderList, error)
	UpdateOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status string) (*OrderDTO, error)
	CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	VerifyPayment(ctx context.Context, actor Actor, orderID uuid.UUID, approved bool) (*OrderDTO, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outbox.Emitter
	revalidator revalidate.Revalidator
	logg        *logger.Logger
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo        Repository
	TxRunner    txRunner
	Outbox      outbox.Emitter
	Revalidator revalidate.Revalidator
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	if params.Revalidator == nil {
		params.Revalidator = revalidate.Nop{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TxRunner,
		outbox:      params.Outbox,
		revalidator: params.Revalidator,
		logg:        params.Logger,
	}, nil
}

func (s *service) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i], false))
	}
	return out, nil
}

// GetOrderDetails returns the order to its owner or an admin.
func (s *service) GetOrderDetails(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.Unauthorized()
	}
	dto := FromModel(order, actor.IsAdmin())
	return &dto, nil
}

func (s *service) GetAllOrders(ctx context.Context, actor Actor, filter AdminOrderFilter) (*AdminOrderList, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.Unauthorized()
	}
	var status *enums.OrderStatus
	if raw := strings.TrimSpace(filter.Status); raw != "" && raw != "all" {
		parsed, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, invalidStatus()
		}
		status = &parsed
	}
	cursor, err := pagination.ParseCursor(filter.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cursor is invalid")
	}
	rows, err := s.repo.ListAll(ctx, status, cursor, filter.Pagination.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	page := pagination.Trim(rows, filter.Pagination.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, FromModel(&page.Items[i], true))
	}
	return &AdminOrderList{Items: items, NextCursor: page.NextCursor}, nil
}

// UpdateOrderStatus lets an admin move an order to any valid status.
func (s *service) UpdateOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status string) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.Unauthorized()
	}
	next, err := enums.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, invalidStatus()
	}
	return s.transition(ctx, actor, orderID, "", func(order *models.Order) (enums.OrderStatus, error) {
		return next, nil
	})
}

// CancelOrder is the owner's self-service cancellation.
func (s *service) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	return s.transition(ctx, actor, orderID, "cancelled by customer", func(order *models.Order) (enums.OrderStatus, error) {
		if order.UserID != actor.UserID {
			return "", pkgerrors.Unauthorized()
		}
		if !order.Status.CustomerCancellable() {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot be cancelled while %s; only pending payment or processing orders can be cancelled", humanStatus(order.Status))).
				WithDetails(map[string]any{"status": order.Status})
		}
		return enums.OrderStatusCancelled, nil
	})
}

// VerifyPayment maps approve to processing and reject to cancelled.
func (s *service) VerifyPayment(ctx context.Context, actor Actor, orderID uuid.UUID, approved bool) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.Unauthorized()
	}
	next, reason := enums.OrderStatusCancelled, "payment rejected"
	if approved {
		next, reason = enums.OrderStatusProcessing, "payment approved"
	}
	return s.transition(ctx, actor, orderID, reason, func(order *models.Order) (enums.OrderStatus, error) {
		return next, nil
	})
}

// transition locks the order, asks decide for the next status, persists it
// and emits order_status_changed in the same transaction.
func (s *service) transition(ctx context.Context, actor Actor, orderID uuid.UUID, reason string, decide func(*models.Order) (enums.OrderStatus, error)) (*OrderDTO, error) {
	var from, to enums.OrderStatus
	var ownerID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		next, err := decide(order)
		if err != nil {
			return err
		}
		from, to, ownerID = order.Status, next, order.UserID
		if from == to {
			return nil
		}
		if err := repo.UpdateStatus(ctx, orderID, to); err != nil {
			return notFoundOr(err, "update order status")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    orderID,
				UserID:     ownerID,
				FromStatus: from,
				ToStatus:   to,
				ChangedBy:  actor.UserID,
				Reason:     reason,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		return nil, err
	}

	if from != to {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from_status": from, "to_status": to})
		s.logg.Info(logCtx, "order status changed")
		s.revalidator.Paths(ctx, revalidate.PathAdminOrders, revalidate.PathOrders, revalidate.OrderPath(orderID))
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	dto := FromModel(order, actor.IsAdmin())
	return &dto, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.NotFound("order")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func invalidStatus() error {
	names := make([]string, 0, 8)
	for _, st := range enums.OrderStatuses() {
		names = append(names, string(st))
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "status must be one of: "+strings.Join(names, ", ")).
		WithDetails(map[string]any{"field": "status"})
}

func humanStatus(status enums.OrderStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}
