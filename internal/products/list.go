package product

import (
	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Query      string            `json:"q,omitempty"`
	CategoryID *uuid.UUID        `json:"category_id,omitempty"`
	Stock      enums.StockFilter `json:"stock,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter products.
// IncludeInactive is only set by admin routes.
type ListProductsInput struct {
	Filters         ProductListFilters
	Pagination      pagination.Params
	IncludeInactive bool
}

// ProductListResult is one page of products.
type ProductListResult = pagination.Page[ProductDTO]
