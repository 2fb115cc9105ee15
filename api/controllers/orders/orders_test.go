package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/api/middleware"
	internalorders "github.com/stmary/giftshop-backend/internal/orders"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

type stubOrders struct {
	internalorders.Service
	actor    internalorders.Actor
	filter   internalorders.AdminOrderFilter
	approved *bool
	err      error
}

func (s *stubOrders) CancelOrder(_ context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: id, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrders) GetAllOrders(_ context.Context, actor internalorders.Actor, filter internalorders.AdminOrderFilter) (*internalorders.AdminOrderList, error) {
	s.actor = actor
	s.filter = filter
	return &internalorders.AdminOrderList{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrders) VerifyPayment(_ context.Context, _ internalorders.Actor, id uuid.UUID, approved bool) (*internalorders.OrderDTO, error) {
	s.approved = &approved
	return &internalorders.OrderDTO{ID: id, Status: enums.OrderStatusProcessing}, nil
}

func withOrder(req *http.Request, orderID uuid.UUID, role enums.UserRole) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	return req.WithContext(middleware.WithUser(ctx, uuid.New(), role))
}

func TestCancelPassesActor(t *testing.T) {
	svc := &stubOrders{}
	orderID := uuid.New()
	req := withOrder(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil), orderID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Cancel(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.actor.Role != enums.UserRoleCustomer || svc.actor.UserID == uuid.Nil {
		t.Fatalf("unexpected actor %+v", svc.actor)
	}
}

func TestCancelStateConflict(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled (status: shipped)")}
	orderID := uuid.New()
	req := withOrder(httptest.NewRequest(http.MethodPost, "/", nil), orderID, enums.UserRoleCustomer)
	rec := httptest.NewRecorder()
	Cancel(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "shipped") {
		t.Fatalf("expected descriptive message, got %s", rec.Body.String())
	}
}

func TestCancelRejectsBadID(t *testing.T) {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(middleware.WithUser(context.WithValue(req.Context(), chi.RouteCtxKey, rc), uuid.New(), enums.UserRoleCustomer))
	rec := httptest.NewRecorder()
	Cancel(&stubOrders{}, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminListForwardsStatusFilter(t *testing.T) {
	svc := &stubOrders{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=pending_payment&limit=5", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), uuid.New(), enums.UserRoleAdmin))
	rec := httptest.NewRecorder()
	AdminList(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.filter.Status != "pending_payment" || svc.filter.Pagination.Limit != 5 {
		t.Fatalf("unexpected filter %+v", svc.filter)
	}
	if !svc.actor.IsAdmin() {
		t.Fatalf("expected admin actor")
	}
}

func TestVerifyPaymentRequiresDecision(t *testing.T) {
	svc := &stubOrders{}
	orderID := uuid.New()
	req := withOrder(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), orderID, enums.UserRoleAdmin)
	rec := httptest.NewRecorder()
	AdminVerifyPayment(svc, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	req = withOrder(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"approved":true}`)), orderID, enums.UserRoleAdmin)
	rec = httptest.NewRecorder()
	AdminVerifyPayment(svc, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || svc.approved == nil || !*svc.approved {
		t.Fatalf("expected approval forwarded, got %d", rec.Code)
	}
}
