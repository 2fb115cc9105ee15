package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

// DateLayout is the wire format of sale_end_date.
const DateLayout = "2006-01-02"

// ProductDTO represents the product payload returned to clients.
type ProductDTO struct {
	ID             uuid.UUID        `json:"id"`
	NameEN         string           `json:"name_en"`
	NameAR         string           `json:"name_ar"`
	DescriptionEN  string           `json:"description_en"`
	DescriptionAR  string           `json:"description_ar"`
	Price          decimal.Decimal  `json:"price"`
	SalePrice      *decimal.Decimal `json:"sale_price,omitempty"`
	SaleEndDate    *string          `json:"sale_end_date,omitempty"`
	SaleActive     bool             `json:"sale_active"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	InStock        bool             `json:"in_stock"`
	CategoryID     *uuid.UUID       `json:"category_id,omitempty"`
	Category       *CategoryRef     `json:"category,omitempty"`
	ImageURL       *string          `json:"image_url,omitempty"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CategoryRef is the category summary embedded in product payloads.
type CategoryRef struct {
	ID     uuid.UUID `json:"id"`
	NameEN string    `json:"name_en"`
	NameAR string    `json:"name_ar"`
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	NameEN        string           `json:"name_en" validate:"runes_between=1 200"`
	NameAR        string           `json:"name_ar" validate:"runes_between=1 200"`
	DescriptionEN string           `json:"description_en" validate:"max=5000"`
	DescriptionAR string           `json:"description_ar" validate:"max=5000"`
	Price         decimal.Decimal  `json:"price"`
	SalePrice     *decimal.Decimal `json:"sale_price,omitempty"`
	SaleEndDate   *string          `json:"sale_end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	InStock       *bool            `json:"in_stock,omitempty"`
	CategoryID    *uuid.UUID       `json:"category_id,omitempty"`
	ImageURL      *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

func (in *ProductInput) normalize() {
	in.NameEN = strings.TrimSpace(in.NameEN)
	in.NameAR = strings.TrimSpace(in.NameAR)
	in.DescriptionEN = strings.TrimSpace(in.DescriptionEN)
	in.DescriptionAR = strings.TrimSpace(in.DescriptionAR)
	in.SaleEndDate = trimmedOrNil(in.SaleEndDate)
	in.ImageURL = trimmedOrNil(in.ImageURL)
	if in.SalePrice != nil && in.SalePrice.IsZero() {
		in.SalePrice = nil
	}
	if in.CategoryID != nil && *in.CategoryID == uuid.Nil {
		in.CategoryID = nil
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// FromModel maps a product using today (store time zone) for sale evaluation.
func FromModel(p *models.Product, today time.Time) ProductDTO {
	dto := ProductDTO{
		ID:             p.ID,
		NameEN:         p.NameEN,
		NameAR:         p.NameAR,
		DescriptionEN:  p.DescriptionEN,
		DescriptionAR:  p.DescriptionAR,
		Price:          p.Price,
		SalePrice:      p.SalePrice,
		SaleActive:     p.SaleActive(today),
		EffectivePrice: p.EffectivePrice(today),
		InStock:        p.InStock,
		CategoryID:     p.CategoryID,
		ImageURL:       p.ImageURL,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.SaleEndDate != nil {
		formatted := p.SaleEndDate.Format(DateLayout)
		dto.SaleEndDate = &formatted
	}
	if p.Category != nil {
		dto.Category = &CategoryRef{ID: p.Category.ID, NameEN: p.Category.NameEN, NameAR: p.Category.NameAR}
	}
	return dto
}
