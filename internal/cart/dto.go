package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/visibility"
)

// CartItemDTO is one cart line with a denormalized product snapshot.
type CartItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       int             `json:"quantity"`
	NameEN         string          `json:"name_en"`
	NameAR         string          `json:"name_ar"`
	Price          decimal.Decimal `json:"price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	SaleActive     bool            `json:"sale_active"`
	InStock        bool            `json:"in_stock"`
	Available      bool            `json:"available"`
	ImageURL       *string         `json:"image_url,omitempty"`
	LineTotal      decimal.Decimal `json:"line_total"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CartDTO is the whole cart.
type CartDTO struct {
	Items     []CartItemDTO   `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// MergeItem is one guest cart line sent at sign-in.
type MergeItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// AddItemRequest is the add-to-cart body.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// UpdateItemRequest sets an absolute quantity; zero removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// MergeRequest wraps the guest lines.
type MergeRequest struct {
	Items []MergeItem `json:"items" validate:"max=200,dive"`
}

func emptyCart() *CartDTO {
	return &CartDTO{Items: []CartItemDTO{}, Subtotal: decimal.Zero}
}

func buildCart(rows []models.CartItem, today time.Time) *CartDTO {
	cart := emptyCart()
	for i := range rows {
		row := rows[i]
		item := CartItemDTO{
			ID:        row.ID,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			CreatedAt: row.CreatedAt,
		}
		if p := row.Product; p != nil {
			item.NameEN = p.NameEN
			item.NameAR = p.NameAR
			item.Price = p.Price
			item.EffectivePrice = p.EffectivePrice(today)
			item.SaleActive = p.SaleActive(today)
			item.InStock = p.InStock
			item.Available = visibility.ProductVisible(p) && p.InStock
			item.ImageURL = p.ImageURL
			item.LineTotal = item.EffectivePrice.Mul(decimal.NewFromInt(int64(row.Quantity)))
		}
		cart.Items = append(cart.Items, item)
		cart.ItemCount += row.Quantity
		if item.Available {
			cart.Subtotal = cart.Subtotal.Add(item.LineTotal)
		}
	}
	return cart
}
