package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func postJSON(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotentPassesThroughWithoutHeader(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postJSON("/api/v1/checkout", "", `{"payment_method":"cash"}`))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, 2, calls)
	require.Empty(t, store.data)
}

func TestIdempotentReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"abc"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postJSON("/api/v1/checkout", "k-1", `{"payment_method":"cash"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postJSON("/api/v1/checkout", "k-1", `{"payment_method":"cash"}`))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, `{"order_id":"abc"}`, second.Body.String())
	require.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		require.Equal(t, OrderIdempotencyTTL, ttl, key)
	}
}

func TestIdempotentRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotent(store, logger.Nop(), AdminIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postJSON("/api/v1/cart/merge", "k-2", `{"items":[]}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/api/v1/cart/merge", "k-2", `{"items":[{"product_id":"x"}]}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	requireErrorCode(t, rec, pkgerrors.CodeConflict)
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	status := http.StatusServiceUnavailable
	calls := 0
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postJSON("/api/v1/checkout", "k-3", `{}`))
	require.Empty(t, store.data)

	status = http.StatusCreated
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/api/v1/checkout", "k-3", `{}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, calls)
}

func TestIdempotentStoresClientErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postJSON("/api/v1/orders/1/cancel", "k-4", ""))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
	require.Equal(t, 1, calls)
}

func TestIdempotentRejectsRetryWhileInFlight(t *testing.T) {
	store := newFakeStore()
	started := make(chan struct{})
	release := make(chan struct{})
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postJSON("/api/v1/checkout", "k-5", `{}`))
		done <- rec.Code
	}()
	<-started

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/api/v1/checkout", "k-5", `{}`))
	require.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	require.Equal(t, http.StatusCreated, <-done)
}

func TestIdempotentScopesKeysPerUser(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := postJSON("/api/v1/checkout", "shared", `{}`)
		req = req.WithContext(WithUser(req.Context(), user, enums.UserRoleCustomer))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
}

func TestIdempotentLeavesMultipartBodyUnread(t *testing.T) {
	store := newFakeStore()
	var received []string
	handler := Idempotent(store, logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		received = append(received, r.FormValue("payment_method"))
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("payment_method", "instapay"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set(IdempotencyHeader, "upload-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	require.Equal(t, []string{"instapay"}, received)
}

func TestIdempotentRejectsOversizedKey(t *testing.T) {
	handler := Idempotent(newFakeStore(), logger.Nop(), OrderIdempotencyTTL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("/api/v1/checkout", strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, code pkgerrors.Code) {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, string(code), payload.Error.Code)
}
