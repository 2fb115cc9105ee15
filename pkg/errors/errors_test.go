package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCodeRendering(t *testing.T) {
	tests := []struct {
		code   Code
		status int
		public string
	}{
		{CodeValidation, http.StatusBadRequest, "quantity must be at least 1"},
		{CodeUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{CodeForbidden, http.StatusForbidden, "Unauthorized"},
		{CodeNotFound, http.StatusNotFound, "quantity must be at least 1"},
		{CodeConflict, http.StatusConflict, "quantity must be at least 1"},
		{CodeStateConflict, http.StatusUnprocessableEntity, "quantity must be at least 1"},
		{CodeRateLimit, http.StatusTooManyRequests, "quantity must be at least 1"},
		{CodeInternal, http.StatusInternalServerError, "internal server error"},
		{CodeDependency, http.StatusServiceUnavailable, "quantity must be at least 1"},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.status {
			t.Fatalf("code %s: expected status %d got %d", tt.code, tt.status, got)
		}
		if got := New(tt.code, "quantity must be at least 1").PublicMessage(); got != tt.public {
			t.Fatalf("code %s: expected public message %q got %q", tt.code, tt.public, got)
		}
	}
}

func TestPublicDetailsOnlyForClientErrors(t *testing.T) {
	details := map[string]string{"field": "quantity"}
	if New(CodeValidation, "bad").WithDetails(details).PublicDetails() == nil {
		t.Fatal("validation details should be exposed")
	}
	if New(CodeInternal, "boom").WithDetails(details).PublicDetails() != nil {
		t.Fatal("internal details must stay hidden")
	}
}

func TestLogFieldsIncludePostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_users_email", TableName: "users"}
	fields := LogFields(Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create user"))
	if fields["error_code"] != CodeConflict || fields["pg_code"] != "23505" || fields["pg_constraint"] != "ux_users_email" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatal("empty diagnostics should be omitted")
	}
	if chain, _ := fields["error_chain"].([]string); len(chain) != 3 {
		t.Fatalf("expected three links in chain, got %v", fields["error_chain"])
	}
	if LogFields(nil) != nil {
		t.Fatal("nil error should produce no fields")
	}
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("pq: connection refused"), "insert order")
	if got := err.PublicMessage(); got != "internal server error" {
		t.Fatalf("expected generic message, got %q", got)
	}

	validation := New(CodeValidation, "label must be at least 2 characters")
	if got := validation.PublicMessage(); got != "label must be at least 2 characters" {
		t.Fatalf("expected verbatim validation message, got %q", got)
	}

	if got := New(CodeForbidden, "user 42 is not admin").PublicMessage(); got != "Unauthorized" {
		t.Fatalf("expected generic unauthorized, got %q", got)
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	base := NotFound("order")
	wrapped := fmt.Errorf("load: %w", base)

	if !IsCode(wrapped, CodeNotFound) {
		t.Fatal("expected wrapped error to carry NOT_FOUND")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
	if got := base.Message(); got != "order not found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("timeout"), "upload payment proof")
	want := "DEPENDENCY_ERROR: upload payment proof: timeout"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if err.Unwrap() == nil {
		t.Fatal("expected cause to unwrap")
	}
}
