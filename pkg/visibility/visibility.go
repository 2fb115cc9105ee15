package visibility

import (
	"fmt"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
)

// ProductVisible reports whether a shopper may see the product in the catalog.
// Inactive products and products under an inactive category are hidden.
func ProductVisible(product *models.Product) bool {
	if product == nil || !product.IsActive {
		return false
	}
	if product.Category != nil && !product.Category.IsActive {
		return false
	}
	return true
}

// EnsureProductVisible returns NOT_FOUND for products hidden from shoppers, so
// hidden ids cannot be probed.
func EnsureProductVisible(product *models.Product) error {
	if !ProductVisible(product) {
		return pkgerrors.NotFound("product")
	}
	return nil
}

// EnsurePurchasable applies the visibility rule plus stock availability.
func EnsurePurchasable(product *models.Product) error {
	if err := EnsureProductVisible(product); err != nil {
		return err
	}
	if !product.InStock {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s is out of stock", product.NameEN))
	}
	return nil
}
