package categories

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID        uuid.UUID `json:"id"`
	NameEN    string    `json:"name_en"`
	NameAR    string    `json:"name_ar"`
	ImageURL  *string   `json:"image_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryInput is used for both create and update.
type CategoryInput struct {
	NameEN   string  `json:"name_en" validate:"runes_between=1 100"`
	NameAR   string  `json:"name_ar" validate:"runes_between=1 100"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (in *CategoryInput) normalize() {
	in.NameEN = strings.TrimSpace(in.NameEN)
	in.NameAR = strings.TrimSpace(in.NameAR)
	if in.ImageURL != nil {
		trimmed := strings.TrimSpace(*in.ImageURL)
		if trimmed == "" {
			in.ImageURL = nil
		} else {
			in.ImageURL = &trimmed
		}
	}
}

func FromModel(c *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:        c.ID,
		NameEN:    c.NameEN,
		NameAR:    c.NameAR,
		ImageURL:  c.ImageURL,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
