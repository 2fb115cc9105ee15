package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StoreSettingsID is the primary key of the singleton settings row.
const StoreSettingsID = 1

// StoreSettings holds storefront-wide configuration edited from the back office.
type StoreSettings struct {
	ID                    int             `gorm:"column:id;primaryKey"`
	StoreNameEN           string          `gorm:"column:store_name_en;not null"`
	StoreNameAR           string          `gorm:"column:store_name_ar;not null"`
	ContactEmail          string          `gorm:"column:contact_email;not null;default:''"`
	ContactPhone          string          `gorm:"column:contact_phone;not null;default:''"`
	Address               string          `gorm:"column:address;not null;default:''"`
	DeliveryFee           decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	FreeDeliveryThreshold decimal.Decimal `gorm:"column:free_delivery_threshold;type:numeric(12,2);not null"`
	Currency              string          `gorm:"column:currency;not null;default:'EGP'"`
	SocialLinks           SocialLinks     `gorm:"column:social_links;type:jsonb;not null"`
	ActiveTheme           string          `gorm:"column:active_theme;not null;default:'classic'"`
	HeroImageURL          *string         `gorm:"column:hero_image_url"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (StoreSettings) TableName() string {
	return "store_settings"
}

// DeliveryFeeFor returns the fee charged on a delivery order with the given subtotal.
// A zero threshold disables free delivery.
func (s StoreSettings) DeliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if s.FreeDeliveryThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return s.DeliveryFee
}

// SocialLinks maps a network name (facebook, instagram, whatsapp) to a URL.
type SocialLinks map[string]string

func (s SocialLinks) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]string(s))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (s *SocialLinks) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SocialLinks{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported social links type %T", src)
	}
	out := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*s = out
	return nil
}
