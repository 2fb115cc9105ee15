package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SavedAddress is a user-owned delivery address; at most one per user is default.
type SavedAddress struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Label     string    `gorm:"column:label;not null"`
	Address   string    `gorm:"column:address;not null"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *SavedAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
