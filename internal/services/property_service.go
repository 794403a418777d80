package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
	"estatelink/marketplace/internal/models"
	"estatelink/marketplace/internal/repository"
)

const propertyKeyPrefix = "property:"

// TourInput asks for a visit to a previously announced property.
type TourInput struct {
	MLSID         string     `json:"mls_id" validate:"required"`
	PreferredTime *time.Time `json:"preferred_time"`
}

// IPropertyService handles property snapshots, saves and tour requests.
type IPropertyService interface {
	RecordPropertyData(ctx context.Context, data models.PropertyData) (bool, error)
	GetPropertyData(ctx context.Context, mlsID string) (*models.PropertyData, error)
	SaveProperty(ctx context.Context, actor models.Actor, mlsID string) (*models.SavedProperty, error)
	ListSavedProperties(ctx context.Context, actor models.Actor) ([]models.SavedProperty, error)
	RequestTour(ctx context.Context, actor models.Actor, input TourInput) (*models.TourRequest, error)
	ListTours(ctx context.Context, actor models.Actor) ([]models.TourRequest, error)
}

type propertyService struct {
	cfg  *config.Config
	rdb  redis.Cmdable
	repo repository.IPropertyRepository
	now  func() time.Time
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(cfg *config.Config, rdb redis.Cmdable, repo repository.IPropertyRepository) IPropertyService {
	return &propertyService{cfg: cfg, rdb: rdb, repo: repo, now: utcNow}
}

// RecordPropertyData caches the snapshot announced by the listing widget. Only the
// first announcement within the cache TTL is kept; it reports whether this call stored it.
func (s *propertyService) RecordPropertyData(ctx context.Context, data models.PropertyData) (bool, error) {
	data.MLSID = strings.TrimSpace(data.MLSID)
	if data.MLSID == "" {
		return false, invalid("mls_id", "is required")
	}
	if data.Price.IsNegative() {
		return false, invalid("price", "must not be negative")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("failed to encode property data: %w", err)
	}
	stored, err := s.rdb.SetNX(ctx, propertyKeyPrefix+data.MLSID, raw, s.cfg.PropertyCacheTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to cache property %s: %w", data.MLSID, err)
	}
	if stored {
		logging.GetLogger().WithField("mls_id", data.MLSID).Debug("property data cached")
	}
	return stored, nil
}

func (s *propertyService) GetPropertyData(ctx context.Context, mlsID string) (*models.PropertyData, error) {
	raw, err := s.rdb.Get(ctx, propertyKeyPrefix+mlsID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("property %s: %w", mlsID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read property %s: %w", mlsID, err)
	}
	var data models.PropertyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode property %s: %w", mlsID, err)
	}
	return &data, nil
}

func (s *propertyService) SaveProperty(ctx context.Context, actor models.Actor, mlsID string) (*models.SavedProperty, error) {
	if err := authorize(actor.Role == models.RoleBuyer, "save property"); err != nil {
		return nil, err
	}
	data, err := s.GetPropertyData(ctx, mlsID)
	if err != nil {
		return nil, err
	}
	return s.repo.SaveProperty(ctx, &models.SavedProperty{
		BuyerID:         actor.ProfileID,
		MLSID:           data.MLSID,
		PropertyAddress: data.Address,
		Price:           data.Price,
		CreatedAt:       s.now(),
	})
}

func (s *propertyService) ListSavedProperties(ctx context.Context, actor models.Actor) ([]models.SavedProperty, error) {
	return s.repo.ListSaved(ctx, actor.ProfileID)
}

func (s *propertyService) RequestTour(ctx context.Context, actor models.Actor, input TourInput) (*models.TourRequest, error) {
	if err := authorize(actor.Role == models.RoleBuyer, "request tour"); err != nil {
		return nil, err
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	now := s.now()
	if input.PreferredTime != nil && input.PreferredTime.Before(now) {
		return nil, invalid("preferred_time", "must be in the future")
	}
	data, err := s.GetPropertyData(ctx, input.MLSID)
	if err != nil {
		return nil, err
	}
	return s.repo.InsertTour(ctx, &models.TourRequest{
		BuyerID:         actor.ProfileID,
		MLSID:           data.MLSID,
		PropertyAddress: data.Address,
		RequestedAt:     now,
		PreferredTime:   input.PreferredTime,
		Status:          models.TourRequested,
		CreatedAt:       now,
	})
}

func (s *propertyService) ListTours(ctx context.Context, actor models.Actor) ([]models.TourRequest, error) {
	return s.repo.ListTours(ctx, actor.ProfileID)
}
