package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	FullName      string         `json:"full_name"`
	Phone         *string        `json:"phone,omitempty"`
	PhoneRequired bool           `json:"phone_required"`
	Role          enums.UserRole `json:"role"`
	IsActive      bool           `json:"is_active"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        *string
	Role         enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Phone:         u.Phone,
		PhoneRequired: u.NeedsPhone(),
		Role:          u.Role,
		IsActive:      u.IsActive,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FullName:     c.FullName,
		Phone:        c.Phone,
		Role:         role,
		IsActive:     true,
	}
}

// UpdateEmailRequest is the profile email form.
type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// UpdateNameRequest is the profile name form.
type UpdateNameRequest struct {
	FullName string `json:"fullName" validate:"runes_between=2 100"`
}

// UpdatePhoneRequest completes the post-signup profile.
type UpdatePhoneRequest struct {
	Phone string `json:"phone" validate:"required,eg_phone"`
}
