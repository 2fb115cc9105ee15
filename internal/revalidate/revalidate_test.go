package revalidate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type stubStore struct {
	invalidated []string
	published   []Notice
	tagErr      error
	publishErr  error
}

func (s *stubStore) InvalidateTag(_ context.Context, tag string) (int, error) {
	if s.tagErr != nil {
		return 0, s.tagErr
	}
	s.invalidated = append(s.invalidated, tag)
	return 1, nil
}

func (s *stubStore) Publish(_ context.Context, channel string, payload any) error {
	if channel != Channel {
		return errors.New("wrong channel")
	}
	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, payload.(Notice))
	return nil
}

func TestPathsPublishesDedupedNotice(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil)

	svc.Paths(context.Background(), PathCart, PathOrders, PathCart, "")

	if len(store.published) != 1 {
		t.Fatalf("expected one notice, got %d", len(store.published))
	}
	got := store.published[0].Paths
	if len(got) != 2 || got[0] != PathCart || got[1] != PathOrders {
		t.Fatalf("unexpected paths %v", got)
	}
	if store.published[0].At.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestTagsInvalidateThenPublish(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, nil)

	svc.Tags(context.Background(), TagStoreSettings)

	if len(store.invalidated) != 1 || store.invalidated[0] != TagStoreSettings {
		t.Fatalf("expected tag invalidated, got %v", store.invalidated)
	}
	if len(store.published) != 1 || store.published[0].Tags[0] != TagStoreSettings {
		t.Fatalf("expected tag notice, got %+v", store.published)
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	store := &stubStore{tagErr: errors.New("down"), publishErr: errors.New("down")}
	svc := NewService(store, nil)

	svc.Tags(context.Background(), TagStoreSettings)
	svc.Paths(context.Background(), PathHome)
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *Service
	svc.Paths(context.Background(), PathHome)
	svc.Tags(context.Background(), TagStoreSettings)
}

func TestOrderPath(t *testing.T) {
	id := uuid.MustParse("3f1c2a8e-8d7b-4c1d-9d8a-0c9a5e2b7f10")
	if got := OrderPath(id); got != "/orders/3f1c2a8e-8d7b-4c1d-9d8a-0c9a5e2b7f10" {
		t.Fatalf("unexpected path %q", got)
	}
}
