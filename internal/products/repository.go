package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stmary/giftshop-backend/pkg/db/models"
	"github.com/stmary/giftshop-backend/pkg/enums"
	"github.com/stmary/giftshop-backend/pkg/pagination"
)

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product with its category.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the requested products with categories; missing ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Preload("Category").Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// CategoryExists reports whether the category row is present.
func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// CreateProduct inserts every column so false booleans are not replaced by defaults.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Select("*").Create(product).Error
}

// UpdateProduct overwrites the editable columns.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).
		Model(product).
		Select("name_en", "name_ar", "description_en", "description_ar", "price", "sale_price",
			"sale_end_date", "in_stock", "category_id", "image_url", "is_active", "updated_at").
		Omit("Category").
		Updates(product).Error
}

// SetActive flips visibility and reports whether the row existed.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("is_active", active)
	return res.RowsAffected > 0, res.Error
}

// DeleteProduct removes a product by ID and reports whether it existed.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected > 0, res.Error
}

// List applies filters in SQL and returns limit+1 rows ordered newest first.
func (r *Repository) List(ctx context.Context, input ListProductsInput, cursor *pagination.Cursor) ([]models.Product, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.*").
		Preload("Category").
		Joins("LEFT JOIN categories ON categories.id = products.category_id")

	if !input.IncludeInactive {
		q = q.Where("products.is_active = ?", true).
			Where("(products.category_id IS NULL OR categories.is_active = ?)", true)
	}
	if term := strings.TrimSpace(input.Filters.Query); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		op := r.likeOperator()
		q = q.Where("(products.name_en "+op+" ? ESCAPE '\\' OR products.name_ar "+op+" ? ESCAPE '\\')", pattern, pattern)
	}
	if input.Filters.CategoryID != nil {
		q = q.Where("products.category_id = ?", *input.Filters.CategoryID)
	}
	switch input.Filters.Stock {
	case enums.StockFilterInStock:
		q = q.Where("products.in_stock = ?", true)
	case enums.StockFilterOutOfStock:
		q = q.Where("products.in_stock = ?", false)
	}

	var rows []models.Product
	err := q.Scopes(pagination.NewestFirst("products", cursor, input.Pagination.Limit)).Find(&rows).Error
	return rows, err
}

// likeOperator uses ILIKE on postgres; sqlite LIKE is already case-insensitive for ASCII.
func (r *Repository) likeOperator() string {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
