package cart

import (
	"github.com/google/uuid"

	cartsvc "github.com/stmary/giftshop-backend/internal/cart"
)

// AddItemRequest adds quantity units of a product to the caller's cart.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required"`
}

// UpdateItemRequest overwrites the quantity; zero or less removes the line.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// MergeRequest carries the guest cart saved on the device.
type MergeRequest struct {
	Items []cartsvc.MergeItem `json:"items" validate:"max=200,dive"`
}
