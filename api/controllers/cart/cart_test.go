package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/api/middleware"
	cartsvc "github.com/stmary/giftshop-backend/internal/cart"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

type stubCartService struct {
	cartsvc.Service
	added    []int
	updated  []int
	merged   []cartsvc.MergeItem
	addErr   error
	cartSize int
}

func (s *stubCartService) GetCart(context.Context, uuid.UUID) *cartsvc.CartDTO {
	return &cartsvc.CartDTO{Items: []cartsvc.CartItemDTO{}, ItemCount: s.cartSize}
}

func (s *stubCartService) AddToCart(_ context.Context, _, _ uuid.UUID, quantity int) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, quantity)
	s.cartSize += quantity
	return nil
}

func (s *stubCartService) UpdateCartItem(_ context.Context, _, _ uuid.UUID, quantity int) error {
	s.updated = append(s.updated, quantity)
	return nil
}

func (s *stubCartService) MergeCart(_ context.Context, _ uuid.UUID, items []cartsvc.MergeItem) error {
	s.merged = items
	return nil
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), uuid.New(), enums.UserRoleCustomer))
}

func TestCartAddReturnsUpdatedCart(t *testing.T) {
	svc := &stubCartService{}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":2}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	CartAdd(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ItemCount != 2 {
		t.Fatalf("expected count 2 got %d", envelope.Data.ItemCount)
	}
}

func TestCartAddSurfacesServiceError(t *testing.T) {
	svc := &stubCartService{addErr: pkgerrors.NotFound("product")}
	body := `{"product_id":"` + uuid.NewString() + `","quantity":1}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	CartAdd(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCartRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	CartFetch(&stubCartService{}, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestCartUpdateAcceptsZeroQuantity(t *testing.T) {
	svc := &stubCartService{}
	productID := uuid.New()
	req := authed(httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{"quantity":0}`)))
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", productID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	rec := httptest.NewRecorder()
	CartUpdateItem(svc, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.updated) != 1 || svc.updated[0] != 0 {
		t.Fatalf("expected zero quantity forwarded, got %v", svc.updated)
	}
}

func TestCartMergeForwardsItems(t *testing.T) {
	svc := &stubCartService{}
	a, b := uuid.NewString(), uuid.NewString()
	body := `{"items":[{"product_id":"` + a + `","quantity":1},{"product_id":"` + b + `","quantity":3}]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	CartMerge(svc, logger.Nop()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.merged) != 2 || svc.merged[1].Quantity != 3 {
		t.Fatalf("unexpected merge input %+v", svc.merged)
	}
}
