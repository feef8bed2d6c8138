package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
)

// epgSourceRepo implements EpgSourceRepository using GORM.
type epgSourceRepo struct {
	db *gorm.DB
}

// NewEpgSourceRepository creates a new EpgSourceRepository.
func NewEpgSourceRepository(db *gorm.DB) *epgSourceRepo {
	return &epgSourceRepo{db: db}
}

// Create creates a new EPG source.
func (r *epgSourceRepo) Create(ctx context.Context, source *models.EpgSource) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating EPG source: %w", err)
	}
	return nil
}

// GetByID retrieves an EPG source by ID.
func (r *epgSourceRepo) GetByID(ctx context.Context, id models.ULID) (*models.EpgSource, error) {
	var source models.EpgSource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting EPG source by ID: %w", err)
	}
	return &source, nil
}

// GetAll retrieves all EPG sources.
func (r *epgSourceRepo) GetAll(ctx context.Context) ([]*models.EpgSource, error) {
	var sources []*models.EpgSource
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all EPG sources: %w", err)
	}
	return sources, nil
}

// GetActive retrieves all active EPG sources.
func (r *epgSourceRepo) GetActive(ctx context.Context) ([]*models.EpgSource, error) {
	var sources []*models.EpgSource
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting active EPG sources: %w", err)
	}
	return sources, nil
}

// Update updates an existing EPG source.
func (r *epgSourceRepo) Update(ctx context.Context, source *models.EpgSource) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating EPG source: %w", err)
	}
	return nil
}

// Delete deletes an EPG source by ID.
func (r *epgSourceRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Unscoped().Delete(&models.EpgSource{}).Error; err != nil {
		return fmt.Errorf("deleting EPG source: %w", err)
	}
	return nil
}

// Ensure epgSourceRepo implements EpgSourceRepository at compile time.
var _ EpgSourceRepository = (*epgSourceRepo)(nil)
