package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/api/middleware"
	"github.com/stmary/giftshop-backend/internal/users"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

type stubUsers struct {
	users.Service
	err      error
	gotEmail string
	gotName  string
}

func (s *stubUsers) UpdateEmail(_ context.Context, _ uuid.UUID, req users.UpdateEmailRequest) error {
	s.gotEmail = req.Email
	return s.err
}

func (s *stubUsers) UpdateFullName(_ context.Context, _ uuid.UUID, req users.UpdateNameRequest) error {
	s.gotName = req.FullName
	return s.err
}

func serve(h http.HandlerFunc, body string, signedIn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profile", strings.NewReader(body))
	if signedIn {
		req = req.WithContext(middleware.WithUser(req.Context(), uuid.New(), enums.UserRoleCustomer))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpdateNameSuccess(t *testing.T) {
	svc := &stubUsers{}
	rec := serve(UpdateName(svc, logger.Nop()), `{"fullName":"Mina Adel"}`, true)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if svc.gotName != "Mina Adel" {
		t.Fatalf("name not forwarded: %q", svc.gotName)
	}
}

func TestUpdateEmailConflictIsBadRequest(t *testing.T) {
	svc := &stubUsers{err: pkgerrors.New(pkgerrors.CodeConflict, "email already in use")}
	rec := serve(UpdateEmail(svc, logger.Nop()), `{"email":"taken@example.com"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"error":"email already in use"}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestProfileWithoutSession(t *testing.T) {
	rec := serve(UpdateEmail(&stubUsers{}, logger.Nop()), `{"email":"a@b.co"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestProfileFailureIsInternal(t *testing.T) {
	svc := &stubUsers{err: pkgerrors.Wrap(pkgerrors.CodeInternal, context.DeadlineExceeded, "update user")}
	rec := serve(UpdateName(svc, logger.Nop()), `{"fullName":"Mina Adel"}`, true)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}
