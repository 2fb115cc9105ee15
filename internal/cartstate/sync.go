package cartstate

import (
	"context"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/internal/cart"
)

// ServiceSync talks to the cart service in-process on behalf of one user.
type ServiceSync struct {
	Service cart.Service
	UserID  uuid.UUID
}

func (s ServiceSync) Fetch(ctx context.Context) ([]Item, error) {
	dto := s.Service.GetCart(ctx, s.UserID)
	items := make([]Item, 0, len(dto.Items))
	for _, line := range dto.Items {
		items = append(items, Item{
			ID:       line.ID.String(),
			Quantity: line.Quantity,
			Product: Product{
				ID:             line.ProductID,
				NameEN:         line.NameEN,
				NameAR:         line.NameAR,
				Price:          line.Price,
				EffectivePrice: line.EffectivePrice,
				ImageURL:       line.ImageURL,
				InStock:        line.InStock,
			},
		})
	}
	return items, nil
}

func (s ServiceSync) Add(ctx context.Context, productID uuid.UUID, quantity int) error {
	return s.Service.AddToCart(ctx, s.UserID, productID, quantity)
}

func (s ServiceSync) Update(ctx context.Context, productID uuid.UUID, quantity int) error {
	return s.Service.UpdateCartItem(ctx, s.UserID, productID, quantity)
}

func (s ServiceSync) Remove(ctx context.Context, productID uuid.UUID) error {
	return s.Service.RemoveFromCart(ctx, s.UserID, productID)
}

func (s ServiceSync) Merge(ctx context.Context, items []Item) error {
	merge := make([]cart.MergeItem, 0, len(items))
	for _, item := range items {
		merge = append(merge, cart.MergeItem{ProductID: item.Product.ID, Quantity: item.Quantity})
	}
	return s.Service.MergeCart(ctx, s.UserID, merge)
}
