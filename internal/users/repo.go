package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// emailIs matches email case-insensitively; the column carries a unique
// index on lower(email).
func emailIs(email string) func(*gorm.DB) *gorm.DB {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("lower(email) = ?", normalized)
	}
}

func (r *Repository) users(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{})
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail returns gorm.ErrRecordNotFound when no account uses email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	if err := r.db.WithContext(ctx).Scopes(emailIs(email)).Take(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := new(models.User)
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// EmailTakenByOther reports whether an account other than self uses email.
func (r *Repository) EmailTakenByOther(ctx context.Context, email string, self uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	err := r.users(ctx).
		Scopes(emailIs(email)).
		Where("id <> ?", self).
		Limit(1).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.users(ctx).Where("id = ?", id).UpdateColumn("last_login_at", at.UTC()).Error
}

// UpdateFields applies a partial update and reports gorm.ErrRecordNotFound
// when the user does not exist.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.users(ctx).Where("id = ?", id).Updates(fields)
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.UpdateFields(ctx, id, map[string]any{"password_hash": hash})
}
