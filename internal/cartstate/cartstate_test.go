package cartstate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeSync struct {
	mu      sync.Mutex
	lines   []Item
	seq     int
	addErr  error
	gate    chan struct{}
	merged  []Item
	fetches int
}

func (f *fakeSync) Fetch(ctx context.Context) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return cloneItems(f.lines), nil
}

func (f *fakeSync) Add(ctx context.Context, productID uuid.UUID, quantity int) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	if i := indexOf(f.lines, productID); i >= 0 {
		f.lines[i].Quantity += quantity
		return nil
	}
	f.seq++
	f.lines = append(f.lines, Item{ID: uuid.NewString(), Quantity: quantity, Product: Product{ID: productID}})
	return nil
}

func (f *fakeSync) Update(ctx context.Context, productID uuid.UUID, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = applySet(f.lines, productID, quantity)
	return nil
}

func (f *fakeSync) Remove(ctx context.Context, productID uuid.UUID) error {
	return f.Update(ctx, productID, 0)
}

func (f *fakeSync) Merge(ctx context.Context, items []Item) error {
	f.mu.Lock()
	f.merged = append(f.merged, items...)
	f.mu.Unlock()
	for _, item := range items {
		if err := f.Add(ctx, item.Product.ID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func product(name string) Product {
	return Product{ID: uuid.New(), NameEN: name, Price: decimal.NewFromInt(100), EffectivePrice: decimal.NewFromInt(100), InStock: true}
}

func flush(t *testing.T, c Cart) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.(*AuthenticatedCart).Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestGuestCartPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "cart.json"))
	mug := product("Mug")

	c, err := Open(ctx, Session{}, store, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Add(ctx, mug, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(ctx, mug, 1); err != nil {
		t.Fatalf("add again: %v", err)
	}

	reopened, err := Open(ctx, Session{}, store, nil, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	items := reopened.Items()
	if len(items) != 1 || items[0].Quantity != 3 {
		t.Fatalf("expected one line of 3, got %+v", items)
	}
	if !items[0].Temporary() {
		t.Fatalf("guest line should carry a temporary id, got %q", items[0].ID)
	}
	if reopened.Count() != 3 {
		t.Fatalf("expected count 3, got %d", reopened.Count())
	}
}

func TestGuestCartUpdateToZeroRemoves(t *testing.T) {
	ctx := context.Background()
	store := &MemoryStore{}
	book := product("Book")

	c, _ := Open(ctx, Session{}, store, nil, nil)
	_ = c.Add(ctx, book, 1)
	if err := c.UpdateQuantity(ctx, book.ID, 0); err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.Count() != 0 {
		t.Fatalf("expected empty cart, got %d", c.Count())
	}
}

func TestCorruptLocalStoreIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := &MemoryStore{Raw: []byte("{not json")}

	c, err := Open(ctx, Session{}, store, nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(c.Items()) != 0 {
		t.Fatalf("expected empty cart after corrupt store")
	}
	if store.Raw != nil {
		t.Fatalf("expected corrupt data to be cleared")
	}
}

func TestOpenAuthenticatedMergesGuestCart(t *testing.T) {
	ctx := context.Background()
	store := &MemoryStore{}
	mug := product("Mug")
	_ = store.Save(ctx, []Item{{ID: "tmp-1", Quantity: 2, Product: mug}})
	server := &fakeSync{}

	c, err := Open(ctx, Session{UserID: uuid.New()}, store, server, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	if len(server.merged) != 1 {
		t.Fatalf("expected guest line to be merged, got %d", len(server.merged))
	}
	if store.Raw != nil {
		t.Fatalf("expected local store cleared after merge")
	}
	items := c.Items()
	if len(items) != 1 || items[0].Quantity != 2 || items[0].Temporary() {
		t.Fatalf("expected confirmed server line, got %+v", items)
	}
}

func TestAuthenticatedAddIsOptimistic(t *testing.T) {
	ctx := context.Background()
	server := &fakeSync{gate: make(chan struct{})}
	c, _ := Open(ctx, Session{UserID: uuid.New()}, &MemoryStore{}, server, nil)
	defer c.Close()

	mug := product("Mug")
	if err := c.Add(ctx, mug, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	state := c.State()
	if state.Count != 1 || state.Pending != 1 {
		t.Fatalf("expected optimistic line with one pending op, got %+v", state)
	}
	if !state.Items[0].Temporary() {
		t.Fatalf("expected temporary id before ack, got %q", state.Items[0].ID)
	}

	close(server.gate)
	flush(t, c)

	state = c.State()
	if state.Pending != 0 || state.Count != 1 || state.Items[0].Temporary() {
		t.Fatalf("expected confirmed line after ack, got %+v", state)
	}
}

func TestAuthenticatedRejectedAddRollsBackAndRetries(t *testing.T) {
	ctx := context.Background()
	rejected := errors.New("product is out of stock")
	server := &fakeSync{addErr: rejected}
	c, _ := Open(ctx, Session{UserID: uuid.New()}, &MemoryStore{}, server, nil)
	defer c.Close()

	mug := product("Mug")
	_ = c.Add(ctx, mug, 2)
	flush(t, c)

	state := c.State()
	if state.Count != 0 {
		t.Fatalf("expected rollback, got count %d", state.Count)
	}
	if len(state.Failed) != 1 || !errors.Is(state.LastError, rejected) {
		t.Fatalf("expected one failed op, got %+v", state)
	}

	server.mu.Lock()
	server.addErr = nil
	server.mu.Unlock()

	auth := c.(*AuthenticatedCart)
	if err := auth.Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	flush(t, c)

	state = c.State()
	if state.Count != 2 || len(state.Failed) != 0 || state.LastError != nil {
		t.Fatalf("expected retried line, got %+v", state)
	}
}

func TestAuthenticatedUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	server := &fakeSync{}
	c, _ := Open(ctx, Session{UserID: uuid.New()}, &MemoryStore{}, server, nil)
	defer c.Close()

	mug := product("Mug")
	_ = c.Add(ctx, mug, 1)
	_ = c.UpdateQuantity(ctx, mug.ID, 5)
	flush(t, c)
	if c.Count() != 5 {
		t.Fatalf("expected 5, got %d", c.Count())
	}

	_ = c.UpdateQuantity(ctx, mug.ID, 0)
	flush(t, c)
	if c.Count() != 0 {
		t.Fatalf("expected removal, got %d", c.Count())
	}
}

func TestClosedCartRejectsMutations(t *testing.T) {
	ctx := context.Background()
	c, _ := Open(ctx, Session{UserID: uuid.New()}, &MemoryStore{}, &fakeSync{}, nil)
	_ = c.Close()
	if err := c.Add(ctx, product("Mug"), 1); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestFlushReturnsOnceCartIsClosed(t *testing.T) {
	ctx := context.Background()
	server := &fakeSync{gate: make(chan struct{})}
	c, _ := Open(ctx, Session{UserID: uuid.New()}, &MemoryStore{}, server, nil)
	auth := c.(*AuthenticatedCart)

	_ = c.Add(ctx, product("Mug"), 1)
	_ = c.Add(ctx, product("Candle"), 1)

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()
	<-auth.stop
	close(server.gate)
	<-closed

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := auth.Flush(waitCtx); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if state := c.State(); state.Pending != 0 {
		t.Fatalf("expected queued ops dropped on close, got %+v", state)
	}
}
