package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// providerSyncConfigRepo implements ProviderSyncConfigRepository using GORM.
type providerSyncConfigRepo struct {
	db *gorm.DB
}

// NewProviderSyncConfigRepository creates a new ProviderSyncConfigRepository.
func NewProviderSyncConfigRepository(db *gorm.DB) *providerSyncConfigRepo {
	return &providerSyncConfigRepo{db: db}
}

// GetByProviderID retrieves the schedule for a provider.
func (r *providerSyncConfigRepo) GetByProviderID(ctx context.Context, providerID models.ULID) (*models.ProviderAutoSyncConfig, error) {
	var config models.ProviderAutoSyncConfig
	if err := r.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&config).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting provider sync config: %w", err)
	}
	return &config, nil
}

// GetAll retrieves all schedules.
func (r *providerSyncConfigRepo) GetAll(ctx context.Context) ([]*models.ProviderAutoSyncConfig, error) {
	var configs []*models.ProviderAutoSyncConfig
	if err := r.db.WithContext(ctx).Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("getting provider sync configs: %w", err)
	}
	return configs, nil
}

// Upsert creates or replaces the schedule for a provider.
func (r *providerSyncConfigRepo) Upsert(ctx context.Context, config *models.ProviderAutoSyncConfig) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "interval_minutes", "updated_at",
		}),
	}).Create(config).Error; err != nil {
		return fmt.Errorf("upserting provider sync config: %w", err)
	}
	return nil
}

// MarkRun records the outcome of a sync run.
func (r *providerSyncConfigRepo) MarkRun(ctx context.Context, providerID models.ULID, status, detail string, at time.Time) error {
	updates := map[string]interface{}{
		"last_run_at": at,
		"last_status": status,
		"last_detail": detail,
	}
	if err := r.db.WithContext(ctx).Model(&models.ProviderAutoSyncConfig{}).
		Where("provider_id = ?", providerID).Updates(updates).Error; err != nil {
		return fmt.Errorf("marking provider sync run: %w", err)
	}
	return nil
}

// Ensure providerSyncConfigRepo implements ProviderSyncConfigRepository at compile time.
var _ ProviderSyncConfigRepository = (*providerSyncConfigRepo)(nil)
