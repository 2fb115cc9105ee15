// Package cartstate is a client-side library modelling the storefront cart
// for Go clients of the API. A cart is either a GuestCart persisted
// to a local store or an AuthenticatedCart that applies changes optimistically
// and confirms them against the server cart.
package cartstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

// ErrCorruptStore is returned by LocalStore.Load when the saved cart cannot be decoded.
var ErrCorruptStore = errors.New("cartstate: local cart is corrupt")

// Product is the snapshot a line keeps for display.
type Product struct {
	ID             uuid.UUID       `json:"id"`
	NameEN         string          `json:"name_en"`
	NameAR         string          `json:"name_ar"`
	Price          decimal.Decimal `json:"price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	ImageURL       *string         `json:"image_url,omitempty"`
	InStock        bool            `json:"in_stock"`
}

// Item is one cart line. Lines not yet confirmed by the server carry a
// temporary id of the form tmp-<n>.
type Item struct {
	ID       string  `json:"id"`
	Quantity int     `json:"quantity"`
	Product  Product `json:"product"`
}

// Temporary reports whether the line id was assigned locally.
func (i Item) Temporary() bool {
	return len(i.ID) > 4 && i.ID[:4] == "tmp-"
}

// Session identifies who is shopping; a nil UserID is a guest.
type Session struct {
	UserID uuid.UUID
}

// Authenticated reports whether the session belongs to a signed-in user.
func (s Session) Authenticated() bool {
	return s.UserID != uuid.Nil
}

// LocalStore persists the guest cart on the device.
type LocalStore interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
	Clear(ctx context.Context) error
}

// ServerSync is the server cart as seen by one signed-in user.
type ServerSync interface {
	Fetch(ctx context.Context) ([]Item, error)
	Add(ctx context.Context, productID uuid.UUID, quantity int) error
	Update(ctx context.Context, productID uuid.UUID, quantity int) error
	Remove(ctx context.Context, productID uuid.UUID) error
	Merge(ctx context.Context, items []Item) error
}

// Cart is implemented by GuestCart and AuthenticatedCart.
type Cart interface {
	Items() []Item
	Count() int
	Add(ctx context.Context, product Product, quantity int) error
	Remove(ctx context.Context, productID uuid.UUID) error
	UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) error
	State() State
	Close() error
}

// State is a point-in-time view of the cart for rendering.
type State struct {
	Guest     bool
	Items     []Item
	Count     int
	Pending   int
	Failed    []FailedOp
	LastError error
}

// Open performs the mount logic. Signed-in users get their guest cart merged
// into the server cart, the local store cleared and the server cart loaded;
// guests get whatever the local store holds.
func Open(ctx context.Context, session Session, local LocalStore, sync ServerSync, logg *logger.Logger) (Cart, error) {
	if local == nil {
		return nil, fmt.Errorf("local store is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if !session.Authenticated() {
		return openGuest(ctx, local, logg), nil
	}
	if sync == nil {
		return nil, fmt.Errorf("server sync is required for signed-in carts")
	}

	cart := newAuthenticated(sync, logg)
	guestItems := loadLocal(ctx, local, logg)
	if len(guestItems) > 0 {
		if err := sync.Merge(ctx, guestItems); err != nil {
			logg.Error(ctx, "guest cart merge failed; keeping local copy", err)
			cart.setLastError(err)
		} else if err := local.Clear(ctx); err != nil {
			logg.Warn(ctx, "clear local cart failed")
		}
	}
	if err := cart.reload(ctx); err != nil {
		logg.Error(ctx, "load server cart failed", err)
		cart.setLastError(err)
	}
	cart.start()
	return cart, nil
}

func loadLocal(ctx context.Context, local LocalStore, logg *logger.Logger) []Item {
	items, err := local.Load(ctx)
	if err == nil {
		return items
	}
	if errors.Is(err, ErrCorruptStore) {
		logg.Warn(ctx, "discarding corrupt local cart")
		_ = local.Clear(ctx)
		return nil
	}
	logg.Error(ctx, "load local cart failed", err)
	return nil
}

func countItems(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func cloneItems(items []Item) []Item {
	return append([]Item(nil), items...)
}

func indexOf(items []Item, productID uuid.UUID) int {
	for i, item := range items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

// applyAdd accumulates into an existing line or appends a new one with newID.
func applyAdd(items []Item, product Product, quantity int, newID string) []Item {
	if i := indexOf(items, product.ID); i >= 0 {
		items[i].Quantity += quantity
		return items
	}
	return append(items, Item{ID: newID, Quantity: quantity, Product: product})
}

func applySet(items []Item, productID uuid.UUID, quantity int) []Item {
	i := indexOf(items, productID)
	if i < 0 {
		return items
	}
	if quantity <= 0 {
		return append(items[:i], items[i+1:]...)
	}
	items[i].Quantity = quantity
	return items
}
