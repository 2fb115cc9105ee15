package cartstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

// GuestCart keeps lines in memory and writes them to the local store after
// every mutation.
type GuestCart struct {
	mu      sync.Mutex
	items   []Item
	store   LocalStore
	seq     int
	lastErr error
	logg    *logger.Logger
}

func openGuest(ctx context.Context, store LocalStore, logg *logger.Logger) *GuestCart {
	items := loadLocal(ctx, store, logg)
	cart := &GuestCart{items: items, store: store, logg: logg}
	for _, item := range items {
		var n int
		if _, err := fmt.Sscanf(item.ID, "tmp-%d", &n); err == nil && n > cart.seq {
			cart.seq = n
		}
	}
	return cart
}

func (c *GuestCart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.items)
}

func (c *GuestCart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return countItems(c.items)
}

func (c *GuestCart) Add(ctx context.Context, product Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be at least 1")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.items = applyAdd(c.items, product, quantity, fmt.Sprintf("tmp-%d", c.seq))
	return c.persist(ctx)
}

func (c *GuestCart) Remove(ctx context.Context, productID uuid.UUID) error {
	return c.UpdateQuantity(ctx, productID, 0)
}

func (c *GuestCart) UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = applySet(c.items, productID, quantity)
	return c.persist(ctx)
}

func (c *GuestCart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Guest:     true,
		Items:     cloneItems(c.items),
		Count:     countItems(c.items),
		LastError: c.lastErr,
	}
}

func (c *GuestCart) Close() error { return nil }

// persist expects c.mu to be held.
func (c *GuestCart) persist(ctx context.Context) error {
	if err := c.store.Save(ctx, cloneItems(c.items)); err != nil {
		c.lastErr = err
		c.logg.Error(ctx, "save guest cart failed", err)
		return err
	}
	c.lastErr = nil
	return nil
}
