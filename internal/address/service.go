package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/validate"
)

// Service manages a user's saved delivery addresses.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error)
	Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error)
	Update(ctx context.Context, userID, id uuid.UUID, input AddressInput) (*AddressDTO, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo        *Repository
	tx          txRunner
	revalidator revalidate.Revalidator
	logg        *logger.Logger
}

func NewService(repo *Repository, tx txRunner, revalidator revalidate.Revalidator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if revalidator == nil {
		revalidator = revalidate.Nop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, revalidator: revalidator, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]AddressDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	out := make([]AddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

// Create makes the user's first address the default regardless of input.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	row := &models.SavedAddress{UserID: userID, Label: input.Label, Address: input.Address}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.Count(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count addresses")
		}
		row.IsDefault = input.IsDefault || count == 0
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.IsDefault {
			if err := repo.ClearDefault(ctx, userID, row.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
			}
		}
		if err := repo.Create(ctx, row); err != nil {
			return s.writeError(err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "address created")
	s.revalidate(ctx)
	dto := FromModel(row)
	return &dto, nil
}

// Update can promote an address to default but never demotes the current
// default; use SetDefault on another address for that.
func (s *service) Update(ctx context.Context, userID, id uuid.UUID, input AddressInput) (*AddressDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.Unauthorized()
	}
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	var updated *models.SavedAddress
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.Find(ctx, userID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("address")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
		}
		row.Label = input.Label
		row.Address = input.Address
		if input.IsDefault && !row.IsDefault {
			if err := repo.ClearDefault(ctx, userID, row.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
			}
			row.IsDefault = true
		}
		if err := repo.Update(ctx, row); err != nil {
			return s.writeError(err, "update address")
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.revalidate(ctx)
	dto := FromModel(updated)
	return &dto, nil
}

// Delete promotes the newest remaining address when the default is removed.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.Find(ctx, userID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("address")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
		}
		if _, err := repo.Delete(ctx, userID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete address")
		}
		if !row.IsDefault {
			return nil
		}
		next, err := repo.Newest(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load remaining address")
		}
		if _, err := repo.SetDefault(ctx, userID, next.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promote default address")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.revalidate(ctx)
	return nil
}

func (s *service) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.Unauthorized()
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Find(ctx, userID, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("address")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
		}
		if err := repo.ClearDefault(ctx, userID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear default address")
		}
		if _, err := repo.SetDefault(ctx, userID, id); err != nil {
			return s.writeError(err, "set default address")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.revalidate(ctx)
	return nil
}

func (s *service) writeError(err error, msg string) error {
	if db.IsUniqueViolation(err, "ux_saved_addresses_one_default") {
		return pkgerrors.New(pkgerrors.CodeConflict, "another default address was set concurrently; retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func (s *service) revalidate(ctx context.Context) {
	s.revalidator.Paths(ctx, revalidate.PathCheckout, revalidate.PathAccount)
}
