package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/pagination"
	"github.com/stmary/giftshop-backend/pkg/storetime"
	"github.com/stmary/giftshop-backend/pkg/validate"
	"github.com/stmary/giftshop-backend/pkg/visibility"
)

// Service exposes catalog browsing and admin product management.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ToggleActive(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
}

type service struct {
	repo        *Repository
	clock       storetime.Clock
	revalidator revalidate.Revalidator
	logg        *logger.Logger
}

// NewService wires the product service.
func NewService(repo *Repository, clock storetime.Clock, revalidator revalidate.Revalidator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository is required")
	}
	if revalidator == nil {
		revalidator = revalidate.Nop{}
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, clock: clock, revalidator: revalidator, logg: logg}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if input.Filters.Stock == "" {
		input.Filters.Stock = enums.StockFilterAll
	}
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cursor is invalid")
	}
	rows, err := s.repo.List(ctx, input, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	page := pagination.Trim(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	today := s.clock.Today()
	items := make([]ProductDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, FromModel(&page.Items[i], today))
	}
	return &ProductListResult{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeInactive {
		if err := visibility.EnsureProductVisible(product); err != nil {
			return nil, err
		}
	}
	dto := FromModel(product, s.clock.Today())
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	product := &models.Product{InStock: true, IsActive: true}
	if err := s.apply(ctx, product, input); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product created")
	s.revalidateCatalog(ctx, product.ID)
	return s.reload(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, product, input); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	s.revalidateCatalog(ctx, product.ID)
	return s.reload(ctx, product.ID)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if !found {
		return pkgerrors.NotFound("product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "product deleted")
	s.revalidateCatalog(ctx, id)
	return nil
}

func (s *service) ToggleActive(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.SetActive(ctx, id, !product.IsActive); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "toggle product")
	}
	s.revalidateCatalog(ctx, id)
	return s.reload(ctx, id)
}

// apply validates input and copies it onto product.
func (s *service) apply(ctx context.Context, product *models.Product, input ProductInput) error {
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return err
	}
	if !input.Price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than 0")
	}
	if input.SalePrice != nil {
		if input.SalePrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale_price must be greater than 0")
		}
		if !input.SalePrice.LessThan(input.Price) {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale_price must be less than price")
		}
	}
	var saleEnd *time.Time
	if input.SaleEndDate != nil {
		parsed, err := storetime.ParseDate(*input.SaleEndDate)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale_end_date must be a date (YYYY-MM-DD)")
		}
		saleEnd = &parsed
	}
	if input.CategoryID != nil {
		exists, err := s.repo.CategoryExists(ctx, *input.CategoryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeValidation, "category_id does not exist")
		}
	}

	product.NameEN = input.NameEN
	product.NameAR = input.NameAR
	product.DescriptionEN = input.DescriptionEN
	product.DescriptionAR = input.DescriptionAR
	product.Price = input.Price.Round(2)
	product.SalePrice = nil
	if input.SalePrice != nil {
		rounded := input.SalePrice.Round(2)
		product.SalePrice = &rounded
	}
	product.SaleEndDate = saleEnd
	product.CategoryID = input.CategoryID
	product.Category = nil
	product.ImageURL = input.ImageURL
	if input.InStock != nil {
		product.InStock = *input.InStock
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	return nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(product, s.clock.Today())
	return &dto, nil
}

func (s *service) revalidateCatalog(ctx context.Context, id uuid.UUID) {
	s.revalidator.Paths(ctx, revalidate.PathHome, revalidate.PathProducts, revalidate.ProductPath(id), revalidate.PathAdminProducts)
}
