package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
		return nil
	}
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) GetDel(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	delete(m.data, key)
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, keyer: store, ttl: time.Hour}, store
}

func TestOpenAndRotate(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	userID := uuid.New()

	first, err := manager.Open(ctx, userID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !strings.HasPrefix(first.RefreshToken, first.AccessID+".") {
		t.Fatalf("refresh token should embed access id, got %q", first.RefreshToken)
	}

	second, err := manager.Rotate(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.UserID != userID {
		t.Fatalf("expected rotated session for %s, got %s", userID, second.UserID)
	}
	if second.AccessID == first.AccessID {
		t.Fatal("expected new access id")
	}
	if _, ok := store.data["sess:"+first.AccessID]; ok {
		t.Fatal("old session should be removed")
	}

	if _, err := manager.Rotate(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestRotateRejectsTamperedSecret(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	issued, err := manager.Open(ctx, uuid.New())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := manager.Rotate(ctx, issued.AccessID+".forged"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestRotateRejectsMalformedTokens(t *testing.T) {
	manager, _ := newTestManager()
	for _, token := range []string{"", "no-separator", "not-a-uuid.secret", uuid.NewString() + "."} {
		if _, err := manager.Rotate(context.Background(), token); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("token %q: expected invalid, got %v", token, err)
		}
	}
}

func TestRevokeAndHasSession(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	issued, err := manager.Open(ctx, uuid.New())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ok, err := manager.HasSession(ctx, issued.AccessID)
	if err != nil || !ok {
		t.Fatalf("expected active session, ok=%v err=%v", ok, err)
	}
	if err := manager.Revoke(ctx, issued.AccessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, issued.AccessID)
	if err != nil || ok {
		t.Fatalf("expected no session after revoke, ok=%v err=%v", ok, err)
	}
}

func TestOpenRequiresUser(t *testing.T) {
	manager, _ := newTestManager()
	if _, err := manager.Open(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected error for nil user id")
	}
}
