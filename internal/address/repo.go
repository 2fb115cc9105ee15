package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

// Repository persists saved addresses. Every query is scoped by user id.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List returns the default address first, then newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.SavedAddress, error) {
	var rows []models.SavedAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Find(ctx context.Context, userID, id uuid.UUID) (*models.SavedAddress, error) {
	var row models.SavedAddress
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SavedAddress{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *Repository) Create(ctx context.Context, row *models.SavedAddress) error {
	return r.db.WithContext(ctx).Select("*").Create(row).Error
}

func (r *Repository) Update(ctx context.Context, row *models.SavedAddress) error {
	return r.db.WithContext(ctx).
		Model(row).
		Select("label", "address", "is_default", "updated_at").
		Updates(row).Error
}

// Delete reports whether a row owned by the user was removed.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.SavedAddress{})
	return res.RowsAffected > 0, res.Error
}

// ClearDefault un-defaults every address of the user except keepID.
func (r *Repository) ClearDefault(ctx context.Context, userID, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SavedAddress{}).
		Where("user_id = ? AND id <> ? AND is_default = ?", userID, keepID, true).
		Update("is_default", false).Error
}

func (r *Repository) SetDefault(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SavedAddress{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_default", true)
	return res.RowsAffected > 0, res.Error
}

// Newest returns the most recently created address, if any.
func (r *Repository) Newest(ctx context.Context, userID uuid.UUID) (*models.SavedAddress, error) {
	var row models.SavedAddress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
