package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
)

// tmdbConfigRepo implements TmdbConfigRepository using GORM.
type tmdbConfigRepo struct {
	db *gorm.DB
}

// NewTmdbConfigRepository creates a new TmdbConfigRepository.
func NewTmdbConfigRepository(db *gorm.DB) *tmdbConfigRepo {
	return &tmdbConfigRepo{db: db}
}

// Get retrieves the configuration row, nil when unconfigured.
func (r *tmdbConfigRepo) Get(ctx context.Context) (*models.TmdbConfig, error) {
	var config models.TmdbConfig
	if err := r.db.WithContext(ctx).Order("created_at ASC").First(&config).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting metadata config: %w", err)
	}
	return &config, nil
}

// Upsert creates or replaces the configuration row. The table holds at
// most one row; updates target the existing row's primary key.
func (r *tmdbConfigRepo) Upsert(ctx context.Context, config *models.TmdbConfig) error {
	existing, err := r.Get(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		config.ID = existing.ID
		config.CreatedAt = existing.CreatedAt
	}
	if err := r.db.WithContext(ctx).Save(config).Error; err != nil {
		return fmt.Errorf("upserting metadata config: %w", err)
	}
	return nil
}

// Ensure tmdbConfigRepo implements TmdbConfigRepository at compile time.
var _ TmdbConfigRepository = (*tmdbConfigRepo)(nil)
