package categories

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

// Service manages the category catalog.
type Service interface {
	List(ctx context.Context, includeInactive bool) ([]CategoryDTO, error)
	Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*CategoryDTO, error)
	Create(ctx context.Context, input CategoryInput) (*CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
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
		return nil, fmt.Errorf("category repository is required")
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

func (s *service) List(ctx context.Context, includeInactive bool) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx, !includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*CategoryDTO, error) {
	category, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !category.IsActive && !includeInactive {
		return nil, pkgerrors.NotFound("category")
	}
	dto := FromModel(category)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	category := &models.Category{
		NameEN:   input.NameEN,
		NameAR:   input.NameAR,
		ImageURL: input.ImageURL,
		IsActive: true,
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}
	s.logg.Info(s.logg.WithField(ctx, "category_id", category.ID.String()), "category created")
	s.revalidateCatalog(ctx)
	dto := FromModel(category)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	category, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	category.NameEN = input.NameEN
	category.NameAR = input.NameAR
	category.ImageURL = input.ImageURL
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category")
	}
	s.revalidateCatalog(ctx)
	dto := FromModel(category)
	return &dto, nil
}

// Delete refuses while any product still references the category.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountProducts(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count category products")
		}
		if count > 0 {
			return inUse(count)
		}
		found, err := repo.Delete(ctx, id)
		if err != nil {
			if db.IsForeignKeyViolation(err, "") {
				return inUse(1)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete category")
		}
		if !found {
			return pkgerrors.NotFound("category")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.revalidateCatalog(ctx)
	return nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("category")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	return category, nil
}

func (s *service) revalidateCatalog(ctx context.Context) {
	s.revalidator.Paths(ctx, revalidate.PathHome, revalidate.PathProducts, revalidate.PathAdminCategories)
}

func inUse(count int64) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("category is used by %d product(s); reassign or delete them first", count)).
		WithDetails(map[string]any{"product_count": count})
}
