package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db/dbtest"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository, *revalidate.Recorder) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	rec := &revalidate.Recorder{}
	svc, err := NewService(repo, client, rec, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, rec
}

func boolPtr(v bool) *bool { return &v }

func TestCreateKeepsExplicitInactive(t *testing.T) {
	svc, _, rec := newTestService(t)
	created, err := svc.Create(context.Background(), CategoryInput{
		NameEN:   "Icons",
		NameAR:   "أيقونات",
		IsActive: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.IsActive {
		t.Fatalf("expected inactive category")
	}

	public, err := svc.List(context.Background(), false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(public) != 0 {
		t.Fatalf("inactive category leaked into public list")
	}
	all, _ := svc.List(context.Background(), true)
	if len(all) != 1 {
		t.Fatalf("expected admin list to include inactive category")
	}
	if _, err := svc.Get(context.Background(), created.ID, false); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for public get, got %v", err)
	}
	if len(rec.AllPaths()) != 3 {
		t.Fatalf("expected catalog revalidation, got %v", rec.AllPaths())
	}
}

func TestCreateRequiresBilingualNames(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CategoryInput{NameEN: "Books", NameAR: "  "})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "name_ar must be between 1 and 100 characters" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CategoryInput{NameEN: "Books", NameAR: "كتب"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := svc.Update(context.Background(), created.ID, CategoryInput{NameEN: "Spiritual Books", NameAR: "كتب روحية", IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.NameEN != "Spiritual Books" || updated.IsActive {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if _, err := svc.Update(context.Background(), uuid.New(), CategoryInput{NameEN: "X", NameAR: "Y"}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteBlockedWhileProductsReferenceCategory(t *testing.T) {
	svc, repo, _ := newTestService(t)
	created, err := svc.Create(context.Background(), CategoryInput{NameEN: "Candles", NameAR: "شموع"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	product := &models.Product{
		NameEN:     "Beeswax candle",
		NameAR:     "شمعة",
		Price:      decimal.RequireFromString("45.00"),
		InStock:    true,
		IsActive:   true,
		CategoryID: &created.ID,
	}
	if err := repo.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	err = svc.Delete(context.Background(), created.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Get(context.Background(), created.ID, true); err != nil {
		t.Fatalf("category should still exist: %v", err)
	}

	if err := repo.db.Delete(product).Error; err != nil {
		t.Fatalf("remove product: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
