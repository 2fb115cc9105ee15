package address

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

// AddressDTO is a saved address as returned to its owner.
type AddressDTO struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AddressInput is the create/update body.
type AddressInput struct {
	Label     string `json:"label" validate:"runes_between=2 50"`
	Address   string `json:"address" validate:"runes_between=10 500"`
	IsDefault bool   `json:"is_default"`
}

func (in *AddressInput) normalize() {
	in.Label = strings.TrimSpace(in.Label)
	in.Address = strings.TrimSpace(in.Address)
}

func FromModel(a *models.SavedAddress) AddressDTO {
	return AddressDTO{
		ID:        a.ID,
		Label:     a.Label,
		Address:   a.Address,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
