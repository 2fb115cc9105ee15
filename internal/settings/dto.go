package settings

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

// SettingsDTO is the public view of the store settings.
type SettingsDTO struct {
	StoreNameEN           string            `json:"store_name_en"`
	StoreNameAR           string            `json:"store_name_ar"`
	ContactEmail          string            `json:"contact_email"`
	ContactPhone          string            `json:"contact_phone"`
	Address               string            `json:"address"`
	DeliveryFee           decimal.Decimal   `json:"delivery_fee"`
	FreeDeliveryThreshold decimal.Decimal   `json:"free_delivery_threshold"`
	Currency              string            `json:"currency"`
	SocialLinks           map[string]string `json:"social_links"`
	ActiveTheme           string            `json:"active_theme"`
	HeroImageURL          *string           `json:"hero_image_url,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// SettingsInput replaces every editable field.
type SettingsInput struct {
	StoreNameEN           string            `json:"store_name_en" validate:"runes_between=1 120"`
	StoreNameAR           string            `json:"store_name_ar" validate:"runes_between=1 120"`
	ContactEmail          string            `json:"contact_email" validate:"omitempty,email"`
	ContactPhone          string            `json:"contact_phone" validate:"omitempty,eg_phone"`
	Address               string            `json:"address" validate:"max=500"`
	DeliveryFee           decimal.Decimal   `json:"delivery_fee"`
	FreeDeliveryThreshold decimal.Decimal   `json:"free_delivery_threshold"`
	Currency              string            `json:"currency" validate:"omitempty,len=3"`
	SocialLinks           map[string]string `json:"social_links" validate:"max=10,dive,keys,oneof=facebook instagram whatsapp tiktok x youtube,endkeys,url"`
	ActiveTheme           string            `json:"active_theme" validate:"omitempty,oneof=classic christmas easter ramadan"`
	HeroImageURL          *string           `json:"hero_image_url" validate:"omitempty,url"`
}

func (in *SettingsInput) normalize() {
	in.StoreNameEN = strings.TrimSpace(in.StoreNameEN)
	in.StoreNameAR = strings.TrimSpace(in.StoreNameAR)
	in.ContactEmail = strings.ToLower(strings.TrimSpace(in.ContactEmail))
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.Address = strings.TrimSpace(in.Address)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "EGP"
	}
	if in.ActiveTheme == "" {
		in.ActiveTheme = "classic"
	}
	if in.HeroImageURL != nil && strings.TrimSpace(*in.HeroImageURL) == "" {
		in.HeroImageURL = nil
	}
}

func FromModel(m *models.StoreSettings) SettingsDTO {
	links := map[string]string{}
	for k, v := range m.SocialLinks {
		links[k] = v
	}
	return SettingsDTO{
		StoreNameEN:           m.StoreNameEN,
		StoreNameAR:           m.StoreNameAR,
		ContactEmail:          m.ContactEmail,
		ContactPhone:          m.ContactPhone,
		Address:               m.Address,
		DeliveryFee:           m.DeliveryFee,
		FreeDeliveryThreshold: m.FreeDeliveryThreshold,
		Currency:              m.Currency,
		SocialLinks:           links,
		ActiveTheme:           m.ActiveTheme,
		HeroImageURL:          m.HeroImageURL,
		UpdatedAt:             m.UpdatedAt,
	}
}

// Model converts the cached DTO back for fee calculations.
func (d SettingsDTO) Model() models.StoreSettings {
	return models.StoreSettings{
		ID:                    models.StoreSettingsID,
		StoreNameEN:           d.StoreNameEN,
		StoreNameAR:           d.StoreNameAR,
		ContactEmail:          d.ContactEmail,
		ContactPhone:          d.ContactPhone,
		Address:               d.Address,
		DeliveryFee:           d.DeliveryFee,
		FreeDeliveryThreshold: d.FreeDeliveryThreshold,
		Currency:              d.Currency,
		SocialLinks:           models.SocialLinks(d.SocialLinks),
		ActiveTheme:           d.ActiveTheme,
		HeroImageURL:          d.HeroImageURL,
		UpdatedAt:             d.UpdatedAt,
	}
}
