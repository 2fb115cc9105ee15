package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/storetime"
	"github.com/stmary/giftshop-backend/pkg/visibility"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 99

// Service exposes the server-side cart.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) *CartDTO
	AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	UpdateCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	RemoveFromCart(ctx context.Context, userID, productID uuid.UUID) error
	MergeCart(ctx context.Context, userID uuid.UUID, items []MergeItem) error
}

type service struct {
	repo        CartRepository
	tx          txRunner
	clock       storetime.Clock
	revalidator revalidate.Revalidator
	logg        *logger.Logger
}

// ServiceParams bundles the cart service dependencies.
type ServiceParams struct {
	Repo        CartRepository
	TxRunner    txRunner
	Clock       storetime.Clock
	Revalidator revalidate.Revalidator
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Revalidator == nil {
		params.Revalidator = revalidate.Nop{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TxRunner,
		clock:       params.Clock,
		revalidator: params.Revalidator,
		logg:        params.Logger,
	}, nil
}

// GetCart never fails: a nil user or a repository error yields an empty cart.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) *CartDTO {
	if userID == uuid.Nil {
		return emptyCart()
	}
	rows, err := s.repo.ListWithProducts(ctx, userID)
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "load cart failed", err)
		return emptyCart()
	}
	return buildCart(rows, s.clock.Today())
}

func (s *service) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if quantity > MaxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", MaxLineQuantity))
	}
	products, err := s.repo.FindProducts(ctx, []uuid.UUID{productID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if len(products) == 0 {
		return pkgerrors.NotFound("product")
	}
	if err := visibility.EnsurePurchasable(&products[0]); err != nil {
		return err
	}
	if err := s.repo.Increment(ctx, userID, productID, quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add to cart")
	}
	s.revalidator.Paths(ctx, revalidate.PathCart)
	return nil
}

// UpdateCartItem overwrites the quantity; zero or less removes the line.
func (s *service) UpdateCartItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, userID, productID)
	}
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	if quantity > MaxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", MaxLineQuantity))
	}
	found, err := s.repo.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	if !found {
		return pkgerrors.NotFound("cart item")
	}
	s.revalidator.Paths(ctx, revalidate.PathCart)
	return nil
}

func (s *service) RemoveFromCart(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove from cart")
	}
	s.revalidator.Paths(ctx, revalidate.PathCart)
	return nil
}

// MergeCart folds guest lines into the server cart in one transaction. Duplicate
// product ids are summed, non-positive quantities are ignored and unknown or
// hidden products are skipped.
func (s *service) MergeCart(ctx context.Context, userID uuid.UUID, items []MergeItem) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	order, totals := collapse(items)
	if len(order) == 0 {
		return nil
	}

	merged := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		products, err := repo.FindProducts(ctx, order)
		if err != nil {
			return err
		}
		visible := make(map[uuid.UUID]bool, len(products))
		for i := range products {
			visible[products[i].ID] = visibility.ProductVisible(&products[i])
		}
		for _, id := range order {
			if !visible[id] {
				continue
			}
			if err := repo.Increment(ctx, userID, id, clampQuantity(totals[id])); err != nil {
				return err
			}
			merged++
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":  userID.String(),
		"received": len(items),
		"merged":   merged,
	}), "guest cart merged")
	s.revalidator.Paths(ctx, revalidate.PathCart)
	return nil
}

func collapse(items []MergeItem) ([]uuid.UUID, map[uuid.UUID]int) {
	totals := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil || item.Quantity <= 0 {
			continue
		}
		if _, seen := totals[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		totals[item.ProductID] += item.Quantity
	}
	return order, totals
}

func clampQuantity(q int) int {
	if q > MaxLineQuantity {
		return MaxLineQuantity
	}
	return q
}
