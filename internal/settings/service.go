package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stmary/giftshop-backend/internal/revalidate"
	pkgerrors "github.com/stmary/giftshop-backend/pkg/errors"
	"github.com/stmary/giftshop-backend/pkg/logger"
	"github.com/stmary/giftshop-backend/pkg/validate"
)

// CacheName is the cache entry holding the encoded settings.
const CacheName = "store-settings"

// Service reads and edits the store settings.
type Service interface {
	Get(ctx context.Context) (*SettingsDTO, error)
	Update(ctx context.Context, input SettingsInput) (*SettingsDTO, error)
}

// Cache is the subset of the redis client the settings cache needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetTagged(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error
	CacheKey(name string) string
}

type service struct {
	repo        *Repository
	cache       Cache
	ttl         time.Duration
	revalidator revalidate.Revalidator
	logg        *logger.Logger
}

// ServiceParams bundles the settings service dependencies. Cache may be nil.
type ServiceParams struct {
	Repo        *Repository
	Cache       Cache
	TTL         time.Duration
	Revalidator revalidate.Revalidator
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if params.TTL <= 0 {
		params.TTL = time.Hour
	}
	if params.Revalidator == nil {
		params.Revalidator = revalidate.Nop{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		repo:        params.Repo,
		cache:       params.Cache,
		ttl:         params.TTL,
		revalidator: params.Revalidator,
		logg:        params.Logger,
	}, nil
}

// Get serves from cache when possible; cache errors fall through to the database.
func (s *service) Get(ctx context.Context) (*SettingsDTO, error) {
	if dto, ok := s.fromCache(ctx); ok {
		return dto, nil
	}
	row, err := s.repo.Load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load store settings")
	}
	dto := FromModel(row)
	s.store(ctx, dto)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, input SettingsInput) (*SettingsDTO, error) {
	input.normalize()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.DeliveryFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_fee must not be negative").
			WithDetails(map[string]any{"field": "delivery_fee"})
	}
	if input.FreeDeliveryThreshold.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free_delivery_threshold must not be negative").
			WithDetails(map[string]any{"field": "free_delivery_threshold"})
	}

	row, err := s.repo.Load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load store settings")
	}
	row.StoreNameEN = input.StoreNameEN
	row.StoreNameAR = input.StoreNameAR
	row.ContactEmail = input.ContactEmail
	row.ContactPhone = input.ContactPhone
	row.Address = input.Address
	row.DeliveryFee = input.DeliveryFee.Round(2)
	row.FreeDeliveryThreshold = input.FreeDeliveryThreshold.Round(2)
	row.Currency = input.Currency
	row.SocialLinks = input.SocialLinks
	row.ActiveTheme = input.ActiveTheme
	row.HeroImageURL = input.HeroImageURL
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save store settings")
	}

	s.logg.Info(ctx, "store settings updated")
	s.revalidator.Tags(ctx, revalidate.TagStoreSettings)
	s.revalidator.Paths(ctx, revalidate.PathHome, revalidate.PathAdminSettings)
	dto := FromModel(row)
	return &dto, nil
}

func (s *service) fromCache(ctx context.Context) (*SettingsDTO, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(CacheName))
	if err != nil || raw == "" {
		return nil, false
	}
	var dto SettingsDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		s.logg.Warn(ctx, "discarding undecodable settings cache entry")
		return nil, false
	}
	return &dto, true
}

func (s *service) store(ctx context.Context, dto SettingsDTO) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(dto)
	if err != nil {
		return
	}
	if err := s.cache.SetTagged(ctx, s.cache.CacheKey(CacheName), string(raw), s.ttl, revalidate.TagStoreSettings); err != nil {
		s.logg.Error(ctx, "cache store settings failed", err)
	}
}
