package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// vodStreamRepo implements VodStreamRepository using GORM.
type vodStreamRepo struct {
	db *gorm.DB
}

// NewVodStreamRepository creates a new VodStreamRepository.
func NewVodStreamRepository(db *gorm.DB) *vodStreamRepo {
	return &vodStreamRepo{db: db}
}

// UpsertBatch creates or updates titles on (provider_id, ext_id).
// Enrichment state is never touched on update.
func (r *vodStreamRepo) UpsertBatch(ctx context.Context, streams []*models.VodStream) error {
	if len(streams) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}, {Name: "ext_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "normalized_name", "icon_url", "category_id",
			"container_extension", "rating", "active", "updated_at",
		}),
	}).CreateInBatches(streams, 500).Error; err != nil {
		return fmt.Errorf("upserting VOD streams: %w", err)
	}
	return nil
}

// DeactivateMissing deactivates active titles of a provider whose ext_id is
// not in keep.
func (r *vodStreamRepo) DeactivateMissing(ctx context.Context, providerID models.ULID, keep []int64) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.VodStream{}).
		Where("provider_id = ? AND active = ?", providerID, true)
	if len(keep) > 0 {
		query = query.Where("ext_id NOT IN ?", keep)
	}
	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivating missing VOD streams: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetExtIDs retrieves all stored panel ids of a provider's titles.
func (r *vodStreamRepo) GetExtIDs(ctx context.Context, providerID models.ULID) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&models.VodStream{}).
		Where("provider_id = ?", providerID).
		Pluck("ext_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing VOD ext ids: %w", err)
	}
	return ids, nil
}

// GetByID retrieves a title by ID.
func (r *vodStreamRepo) GetByID(ctx context.Context, id models.ULID) (*models.VodStream, error) {
	var stream models.VodStream
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stream).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting VOD stream by ID: %w", err)
	}
	return &stream, nil
}

// GetEnrichmentCandidates retrieves active titles ordered by least recently
// synced first. The CASE keeps never-synced rows leading on every backend.
func (r *vodStreamRepo) GetEnrichmentCandidates(ctx context.Context, limit int) ([]*models.VodStream, error) {
	var streams []*models.VodStream
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("CASE WHEN tmdb_last_sync IS NULL THEN 0 ELSE 1 END, tmdb_last_sync ASC, created_at ASC").
		Limit(limit).Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting VOD enrichment candidates: %w", err)
	}
	return streams, nil
}

// GetByProviderAndTmdbID retrieves a provider's titles resolved to one
// upstream id, most recently created first.
func (r *vodStreamRepo) GetByProviderAndTmdbID(ctx context.Context, providerID models.ULID, tmdbID int64) ([]*models.VodStream, error) {
	var streams []*models.VodStream
	if err := r.db.WithContext(ctx).
		Where("provider_id = ? AND tmdb_id = ?", providerID, tmdbID).
		Order("created_at DESC, id DESC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting VOD streams by tmdb id: %w", err)
	}
	return streams, nil
}

// GetSynced retrieves all active titles carrying hydrated metadata.
func (r *vodStreamRepo) GetSynced(ctx context.Context) ([]*models.VodStream, error) {
	var streams []*models.VodStream
	if err := r.db.WithContext(ctx).
		Where("active = ? AND tmdb_status = ?", true, models.MetadataSynced).
		Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting synced VOD streams: %w", err)
	}
	return streams, nil
}

// GetByTmdbID retrieves active synced titles resolved to an upstream id
// across all providers.
func (r *vodStreamRepo) GetByTmdbID(ctx context.Context, tmdbID int64) ([]*models.VodStream, error) {
	var streams []*models.VodStream
	if err := r.db.WithContext(ctx).
		Where("active = ? AND tmdb_status = ? AND tmdb_id = ?", true, models.MetadataSynced, tmdbID).
		Order("created_at DESC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting VOD streams by tmdb id: %w", err)
	}
	return streams, nil
}

// Update updates an existing title.
func (r *vodStreamRepo) Update(ctx context.Context, stream *models.VodStream) error {
	if err := r.db.WithContext(ctx).Save(stream).Error; err != nil {
		return fmt.Errorf("updating VOD stream: %w", err)
	}
	return nil
}

// Delete deletes a title by ID.
func (r *vodStreamRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Unscoped().Delete(&models.VodStream{}).Error; err != nil {
		return fmt.Errorf("deleting VOD stream: %w", err)
	}
	return nil
}

// CountByStatus returns the number of active titles per metadata status.
func (r *vodStreamRepo) CountByStatus(ctx context.Context) (map[models.MetadataStatus]int64, error) {
	type row struct {
		TmdbStatus models.MetadataStatus
		N          int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.VodStream{}).
		Select("tmdb_status, COUNT(*) AS n").
		Where("active = ?", true).
		Group("tmdb_status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting VOD streams by status: %w", err)
	}
	counts := make(map[models.MetadataStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.TmdbStatus] = r.N
	}
	return counts, nil
}

// Ensure vodStreamRepo implements VodStreamRepository at compile time.
var _ VodStreamRepository = (*vodStreamRepo)(nil)
