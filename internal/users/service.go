package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/validate"
)

// emailInUseMessage is returned when another account owns the requested email.
const emailInUseMessage = "email already in use"

// Service covers the signed-in user's own profile.
type Service interface {
	Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateEmail(ctx context.Context, userID uuid.UUID, req UpdateEmailRequest) error
	UpdateFullName(ctx context.Context, userID uuid.UUID, req UpdateNameRequest) error
	UpdatePhone(ctx context.Context, userID uuid.UUID, req UpdatePhoneRequest) (*UserDTO, error)
}

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	EmailTakenByOther(ctx context.Context, email string, self uuid.UUID) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type service struct {
	repo        userRepository
	revalidator revalidate.Revalidator
}

// NewService builds the profile service.
func NewService(repo userRepository, revalidator revalidate.Revalidator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if revalidator == nil {
		revalidator = revalidate.Nop{}
	}
	return &service{repo: repo, revalidator: revalidator}, nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateEmail(ctx context.Context, userID uuid.UUID, req UpdateEmailRequest) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return err
	}
	taken, err := s.repo.EmailTakenByOther(ctx, req.Email, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check email")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, emailInUseMessage)
	}
	if err := s.update(ctx, userID, map[string]any{"email": req.Email}); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, emailInUseMessage)
		}
		return err
	}
	s.revalidator.Paths(ctx, revalidate.PathAccountEdit)
	return nil
}

func (s *service) UpdateFullName(ctx context.Context, userID uuid.UUID, req UpdateNameRequest) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validate.Struct(req); err != nil {
		return err
	}
	if err := s.update(ctx, userID, map[string]any{"full_name": req.FullName}); err != nil {
		return err
	}
	s.revalidator.Paths(ctx, revalidate.PathAccountEdit)
	return nil
}

func (s *service) UpdatePhone(ctx context.Context, userID uuid.UUID, req UpdatePhoneRequest) (*UserDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.update(ctx, userID, map[string]any{"phone": req.Phone}); err != nil {
		return nil, err
	}
	s.revalidator.Paths(ctx, revalidate.PathAccount, revalidate.PathAccountEdit)
	return s.Me(ctx, userID)
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Unauthorized()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.Unauthorized()
	}
	return user, nil
}

func (s *service) update(ctx context.Context, userID uuid.UUID, fields map[string]any) error {
	err := s.repo.UpdateFields(ctx, userID, fields)
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Unauthorized()
	}
	if db.IsUniqueViolation(err, "") {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
}
