package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// collectionCacheRepo implements CollectionCacheRepository using GORM.
type collectionCacheRepo struct {
	db *gorm.DB
}

// NewCollectionCacheRepository creates a new CollectionCacheRepository.
func NewCollectionCacheRepository(db *gorm.DB) *collectionCacheRepo {
	return &collectionCacheRepo{db: db}
}

// GetPage retrieves the cached page of a collection.
func (r *collectionCacheRepo) GetPage(ctx context.Context, collectionID models.ULID, page int) (*models.CollectionCache, error) {
	var cache models.CollectionCache
	if err := r.db.WithContext(ctx).
		Where("collection_id = ? AND page = ?", collectionID, page).
		First(&cache).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection cache page: %w", err)
	}
	return &cache, nil
}

// ListPages retrieves the cached page numbers of a collection in order.
func (r *collectionCacheRepo) ListPages(ctx context.Context, collectionID models.ULID) ([]int, error) {
	var pages []int
	if err := r.db.WithContext(ctx).
		Model(&models.CollectionCache{}).
		Where("collection_id = ?", collectionID).
		Order("page").
		Pluck("page", &pages).Error; err != nil {
		return nil, fmt.Errorf("listing collection cache pages: %w", err)
	}
	return pages, nil
}

// UpsertPage creates or replaces the cached page on (collection_id, page).
func (r *collectionCacheRepo) UpsertPage(ctx context.Context, cache *models.CollectionCache) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collection_id"}, {Name: "page"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload", "expires_at", "updated_at",
		}),
	}).Create(cache).Error; err != nil {
		return fmt.Errorf("upserting collection cache page: %w", err)
	}
	return nil
}

// DeleteByCollectionID deletes all cached pages of a collection.
func (r *collectionCacheRepo) DeleteByCollectionID(ctx context.Context, collectionID models.ULID) error {
	if err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Unscoped().Delete(&models.CollectionCache{}).Error; err != nil {
		return fmt.Errorf("deleting collection cache pages: %w", err)
	}
	return nil
}

// Ensure collectionCacheRepo implements CollectionCacheRepository at compile time.
var _ CollectionCacheRepository = (*collectionCacheRepo)(nil)
