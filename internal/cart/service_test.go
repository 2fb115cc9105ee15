package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db/dbtest"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/storetime"
)

type fixture struct {
	svc  Service
	db   *gorm.DB
	user uuid.UUID
	rec  *revalidate.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	rec := &revalidate.Recorder{}
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(client.DB()),
		TxRunner:    client,
		Clock:       storetime.Fixed(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), time.UTC),
		Revalidator: rec,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := models.User{Email: "cart@example.com", PasswordHash: "x", FullName: "Cart Owner", IsActive: true}
	if err := client.DB().Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return fixture{svc: svc, db: client.DB(), user: user.ID, rec: rec}
}

func (f fixture) product(t *testing.T, name string, price string, active, inStock bool) uuid.UUID {
	t.Helper()
	p := models.Product{NameEN: name, NameAR: name, Price: decimal.RequireFromString(price), IsActive: active, InStock: inStock}
	if err := f.db.Omit("Category").Select("*").Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p.ID
}

func TestAddAccumulatesQuantity(t *testing.T) {
	f := newFixture(t)
	candle := f.product(t, "Candle", "20", true, true)

	if err := f.svc.AddToCart(context.Background(), f.user, candle, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.AddToCart(context.Background(), f.user, candle, 3); err != nil {
		t.Fatalf("add again: %v", err)
	}

	cart := f.svc.GetCart(context.Background(), f.user)
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 5 {
		t.Fatalf("expected single line with qty 5, got %+v", cart.Items)
	}
	if cart.ItemCount != 5 || !cart.Subtotal.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("unexpected totals count=%d subtotal=%s", cart.ItemCount, cart.Subtotal)
	}
	if len(f.rec.PathCalls) != 2 || f.rec.PathCalls[0][0] != revalidate.PathCart {
		t.Fatalf("expected /cart revalidation, got %v", f.rec.PathCalls)
	}
}

func TestAddCapsAccumulatedQuantity(t *testing.T) {
	f := newFixture(t)
	bookmark := f.product(t, "Bookmark", "5", true, true)

	if err := f.svc.AddToCart(context.Background(), f.user, bookmark, MaxLineQuantity-1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.AddToCart(context.Background(), f.user, bookmark, 5); err != nil {
		t.Fatalf("add over cap: %v", err)
	}
	if err := f.svc.MergeCart(context.Background(), f.user, []MergeItem{{ProductID: bookmark, Quantity: 40}}); err != nil {
		t.Fatalf("merge over cap: %v", err)
	}

	var line models.CartItem
	if err := f.db.Where("user_id = ? AND product_id = ?", f.user, bookmark).Take(&line).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	if line.Quantity != MaxLineQuantity {
		t.Fatalf("expected quantity capped at %d, got %d", MaxLineQuantity, line.Quantity)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	hidden := f.product(t, "Hidden", "10", false, true)
	soldOut := f.product(t, "Sold out", "10", true, false)

	if err := f.svc.AddToCart(context.Background(), f.user, hidden, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for zero quantity, got %v", err)
	}
	if err := f.svc.AddToCart(context.Background(), f.user, hidden, 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for inactive product, got %v", err)
	}
	if err := f.svc.AddToCart(context.Background(), f.user, uuid.New(), 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
	if err := f.svc.AddToCart(context.Background(), f.user, soldOut, 1); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for out of stock, got %v", err)
	}
	if err := f.svc.AddToCart(context.Background(), uuid.Nil, soldOut, 1); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	icon := f.product(t, "Icon", "250", true, true)
	if err := f.svc.AddToCart(context.Background(), f.user, icon, 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := f.svc.UpdateCartItem(context.Background(), f.user, icon, 4); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := f.svc.GetCart(context.Background(), f.user).Items[0].Quantity; got != 4 {
		t.Fatalf("expected overwrite to 4, got %d", got)
	}

	if err := f.svc.UpdateCartItem(context.Background(), f.user, icon, 0); err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if items := f.svc.GetCart(context.Background(), f.user).Items; len(items) != 0 {
		t.Fatalf("expected zero quantity to remove line, got %+v", items)
	}

	if err := f.svc.RemoveFromCart(context.Background(), f.user, icon); err != nil {
		t.Fatalf("remove should be idempotent: %v", err)
	}
	if err := f.svc.UpdateCartItem(context.Background(), f.user, icon, 2); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for missing line, got %v", err)
	}
}

func TestMergeCartCollapsesAndSkips(t *testing.T) {
	f := newFixture(t)
	candle := f.product(t, "Candle", "20", true, true)
	book := f.product(t, "Book", "60", true, true)
	hidden := f.product(t, "Hidden", "5", false, true)
	if err := f.svc.AddToCart(context.Background(), f.user, candle, 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := f.svc.MergeCart(context.Background(), f.user, []MergeItem{
		{ProductID: candle, Quantity: 2},
		{ProductID: book, Quantity: 1},
		{ProductID: candle, Quantity: 1},
		{ProductID: hidden, Quantity: 3},
		{ProductID: uuid.New(), Quantity: 1},
		{ProductID: book, Quantity: -4},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	cart := f.svc.GetCart(context.Background(), f.user)
	got := map[uuid.UUID]int{}
	for _, item := range cart.Items {
		got[item.ProductID] = item.Quantity
	}
	if len(got) != 2 || got[candle] != 4 || got[book] != 1 {
		t.Fatalf("unexpected merged cart %v", got)
	}
}

func TestMergeCartEmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.MergeCart(context.Background(), f.user, nil); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(f.rec.PathCalls) != 0 {
		t.Fatalf("expected no revalidation for empty merge")
	}
}

type failingRepo struct {
	CartRepository
}

func (failingRepo) ListWithProducts(context.Context, uuid.UUID) ([]models.CartItem, error) {
	return nil, errors.New("connection reset")
}

func TestGetCartSwallowsErrors(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: failingRepo{}, TxRunner: dbtest.Open(t)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cart := svc.GetCart(context.Background(), uuid.New())
	if cart == nil || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart on error")
	}
	if cart := svc.GetCart(context.Background(), uuid.Nil); len(cart.Items) != 0 {
		t.Fatalf("expected empty cart for nil user")
	}
}
