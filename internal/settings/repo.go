package settings

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stmary/giftshop-backend/pkg/db/models"
)

// DefaultStoreNameEN seeds the singleton row when it is missing.
const (
	DefaultStoreNameEN = "St. Mary Library Gift Shop"
	DefaultStoreNameAR = "متجر هدايا مكتبة القديسة مريم"
)

// Repository reads and writes the singleton settings row.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Load returns row 1, inserting the defaults first if it does not exist.
func (r *Repository) Load(ctx context.Context) (*models.StoreSettings, error) {
	row := models.StoreSettings{
		ID:                    models.StoreSettingsID,
		StoreNameEN:           DefaultStoreNameEN,
		StoreNameAR:           DefaultStoreNameAR,
		DeliveryFee:           decimal.Zero,
		FreeDeliveryThreshold: decimal.Zero,
		Currency:              "EGP",
		SocialLinks:           models.SocialLinks{},
		ActiveTheme:           "classic",
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	var out models.StoreSettings
	if err := r.db.WithContext(ctx).First(&out, "id = ?", models.StoreSettingsID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) Save(ctx context.Context, row *models.StoreSettings) error {
	row.ID = models.StoreSettingsID
	return r.db.WithContext(ctx).Select("*").Save(row).Error
}
