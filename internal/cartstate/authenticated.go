package cartstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/logger"
)

// opTimeout bounds a single server call made by the queue worker.
const opTimeout = 15 * time.Second

type opKind string

const (
	opAdd    opKind = "add"
	opSet    opKind = "set"
	opRemove opKind = "remove"
)

type op struct {
	kind     opKind
	product  Product
	quantity int
	tempID   string
}

// FailedOp is an operation the server rejected; it is no longer reflected in
// the visible items and can be replayed with Retry.
type FailedOp struct {
	Kind      string
	ProductID uuid.UUID
	Quantity  int
	Err       error
	At        time.Time

	snapshot Product
}

func (f FailedOp) product() Product {
	if f.snapshot.ID == uuid.Nil {
		return Product{ID: f.ProductID}
	}
	return f.snapshot
}

// AuthenticatedCart shows confirmed server state plus queued operations.
// A single worker sends queued operations in order; after each success the
// server cart is re-fetched so temporary ids become real ones. A rejected
// operation is dropped from the queue, which reverts its visible effect.
type AuthenticatedCart struct {
	mu         sync.Mutex
	confirmed  []Item
	pending    []*op
	failed     []FailedOp
	lastErr    error
	seq        int
	idle       chan struct{}
	idleClosed bool

	sync ServerSync
	logg *logger.Logger
	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newAuthenticated(sync ServerSync, logg *logger.Logger) *AuthenticatedCart {
	idle := make(chan struct{})
	close(idle)
	return &AuthenticatedCart{
		idle:       idle,
		idleClosed: true,
		sync:       sync,
		logg:       logg,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (c *AuthenticatedCart) start() {
	go c.run()
}

func (c *AuthenticatedCart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

func (c *AuthenticatedCart) Count() int {
	return countItems(c.Items())
}

func (c *AuthenticatedCart) Add(ctx context.Context, product Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be at least 1")
	}
	c.mu.Lock()
	c.seq++
	o := &op{kind: opAdd, product: product, quantity: quantity, tempID: fmt.Sprintf("tmp-%d", c.seq)}
	c.mu.Unlock()
	return c.enqueue(o)
}

func (c *AuthenticatedCart) Remove(ctx context.Context, productID uuid.UUID) error {
	return c.enqueue(&op{kind: opRemove, product: Product{ID: productID}})
}

// UpdateQuantity routes non-positive quantities through removal.
func (c *AuthenticatedCart) UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return c.Remove(ctx, productID)
	}
	return c.enqueue(&op{kind: opSet, product: Product{ID: productID}, quantity: quantity})
}

func (c *AuthenticatedCart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.visibleLocked()
	return State{
		Items:     items,
		Count:     countItems(items),
		Pending:   len(c.pending),
		Failed:    append([]FailedOp(nil), c.failed...),
		LastError: c.lastErr,
	}
}

// Retry re-queues every failed operation in its original order.
func (c *AuthenticatedCart) Retry(ctx context.Context) error {
	c.mu.Lock()
	failed := c.failed
	c.failed = nil
	c.lastErr = nil
	c.mu.Unlock()

	for _, f := range failed {
		var o *op
		switch opKind(f.Kind) {
		case opAdd:
			c.mu.Lock()
			c.seq++
			o = &op{kind: opAdd, product: f.product(), quantity: f.Quantity, tempID: fmt.Sprintf("tmp-%d", c.seq)}
			c.mu.Unlock()
		case opSet:
			o = &op{kind: opSet, product: Product{ID: f.ProductID}, quantity: f.Quantity}
		default:
			o = &op{kind: opRemove, product: Product{ID: f.ProductID}}
		}
		if err := c.enqueue(o); err != nil {
			return err
		}
	}
	return nil
}

// Flush blocks until the queue is empty, the cart is closed or ctx ends.
func (c *AuthenticatedCart) Flush(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker; queued operations that were not sent are dropped
// and pending Flush calls return.
func (c *AuthenticatedCart) Close() error {
	c.once.Do(func() {
		close(c.stop)
	})
	<-c.done

	c.mu.Lock()
	c.pending = nil
	if !c.idleClosed {
		close(c.idle)
		c.idleClosed = true
	}
	c.mu.Unlock()
	return nil
}

func (c *AuthenticatedCart) enqueue(o *op) error {
	c.mu.Lock()
	select {
	case <-c.stop:
		c.mu.Unlock()
		return fmt.Errorf("cart is closed")
	default:
	}
	if c.idleClosed {
		c.idle = make(chan struct{})
		c.idleClosed = false
	}
	c.pending = append(c.pending, o)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

func (c *AuthenticatedCart) run() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case <-c.wake:
			c.drain()
		}
	}
}

func (c *AuthenticatedCart) drain() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			if !c.idleClosed {
				close(c.idle)
				c.idleClosed = true
			}
			c.mu.Unlock()
			return
		}
		o := c.pending[0]
		c.mu.Unlock()

		select {
		case <-c.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		err := c.send(ctx, o)
		var fresh []Item
		var fetchErr error
		if err == nil {
			fresh, fetchErr = c.sync.Fetch(ctx)
		}
		cancel()

		c.mu.Lock()
		c.pending = c.pending[1:]
		switch {
		case err != nil:
			c.failed = append(c.failed, FailedOp{
				Kind:      string(o.kind),
				ProductID: o.product.ID,
				Quantity:  o.quantity,
				Err:       err,
				At:        time.Now().UTC(),
				snapshot:  o.product,
			})
			c.lastErr = err
			c.logg.Warn(c.logg.WithField(context.Background(), "product_id", o.product.ID.String()), "cart operation rejected; reverted")
		case fetchErr != nil:
			// the server accepted the change; keep it locally until the next fetch
			c.confirmed = o.apply(cloneItems(c.confirmed))
			c.lastErr = fetchErr
		default:
			c.confirmed = fresh
		}
		c.mu.Unlock()
	}
}

func (c *AuthenticatedCart) send(ctx context.Context, o *op) error {
	switch o.kind {
	case opAdd:
		return c.sync.Add(ctx, o.product.ID, o.quantity)
	case opSet:
		return c.sync.Update(ctx, o.product.ID, o.quantity)
	default:
		return c.sync.Remove(ctx, o.product.ID)
	}
}

func (c *AuthenticatedCart) reload(ctx context.Context) error {
	items, err := c.sync.Fetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.confirmed = items
	c.mu.Unlock()
	return nil
}

func (c *AuthenticatedCart) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// visibleLocked expects c.mu to be held.
func (c *AuthenticatedCart) visibleLocked() []Item {
	items := cloneItems(c.confirmed)
	for _, o := range c.pending {
		items = o.apply(items)
	}
	return items
}

func (o *op) apply(items []Item) []Item {
	switch o.kind {
	case opAdd:
		return applyAdd(items, o.product, o.quantity, o.tempID)
	case opSet:
		return applySet(items, o.product.ID, o.quantity)
	default:
		return applySet(items, o.product.ID, 0)
	}
}
