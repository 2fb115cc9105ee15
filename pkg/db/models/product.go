package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry with an optional time-boxed sale price.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	NameEN        string           `gorm:"column:name_en;not null"`
	NameAR        string           `gorm:"column:name_ar;not null"`
	DescriptionEN string           `gorm:"column:description_en;not null;default:''"`
	DescriptionAR string           `gorm:"column:description_ar;not null;default:''"`
	Price         decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice     *decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2)"`
	SaleEndDate   *time.Time       `gorm:"column:sale_end_date;type:date"`
	InStock       bool             `gorm:"column:in_stock;not null;default:true"`
	CategoryID    *uuid.UUID       `gorm:"column:category_id;type:uuid"`
	Category      *Category        `gorm:"foreignKey:CategoryID"`
	ImageURL      *string          `gorm:"column:image_url"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// SaleActive reports whether the sale price applies on today's calendar date.
// today should already be expressed in the store time zone; the end date is
// compared by year/month/day only.
func (p *Product) SaleActive(today time.Time) bool {
	if p.SalePrice == nil || !p.SalePrice.IsPositive() {
		return false
	}
	if p.SaleEndDate == nil {
		return true
	}
	return !civilDate(*p.SaleEndDate).Before(civilDate(today))
}

// EffectivePrice is the unit price charged on the given day.
func (p *Product) EffectivePrice(today time.Time) decimal.Decimal {
	if p.SaleActive(today) {
		return *p.SalePrice
	}
	return p.Price
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
