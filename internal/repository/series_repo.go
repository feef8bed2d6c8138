package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seriesRepo implements SeriesRepository using GORM.
type seriesRepo struct {
	db *gorm.DB
}

// NewSeriesRepository creates a new SeriesRepository.
func NewSeriesRepository(db *gorm.DB) *seriesRepo {
	return &seriesRepo{db: db}
}

// UpsertBatch creates or updates series on (provider_id, ext_id).
// Enrichment state is never touched on update.
func (r *seriesRepo) UpsertBatch(ctx context.Context, items []*models.SeriesItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}, {Name: "ext_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "normalized_name", "cover_url", "category_id",
			"rating", "active", "updated_at",
		}),
	}).CreateInBatches(items, 500).Error; err != nil {
		return fmt.Errorf("upserting series: %w", err)
	}
	return nil
}

// DeactivateMissing deactivates active series of a provider whose ext_id is
// not in keep.
func (r *seriesRepo) DeactivateMissing(ctx context.Context, providerID models.ULID, keep []int64) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SeriesItem{}).
		Where("provider_id = ? AND active = ?", providerID, true)
	if len(keep) > 0 {
		query = query.Where("ext_id NOT IN ?", keep)
	}
	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivating missing series: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetByID retrieves a series by ID.
func (r *seriesRepo) GetByID(ctx context.Context, id models.ULID) (*models.SeriesItem, error) {
	var item models.SeriesItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting series by ID: %w", err)
	}
	return &item, nil
}

// GetEnrichmentCandidates retrieves active series ordered by least recently
// synced first. The CASE keeps never-synced rows leading on every backend.
func (r *seriesRepo) GetEnrichmentCandidates(ctx context.Context, limit int) ([]*models.SeriesItem, error) {
	var items []*models.SeriesItem
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("CASE WHEN tmdb_last_sync IS NULL THEN 0 ELSE 1 END, tmdb_last_sync ASC, created_at ASC").
		Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting series enrichment candidates: %w", err)
	}
	return items, nil
}

// GetByProviderAndTmdbID retrieves a provider's series resolved to one
// upstream id, most recently created first.
func (r *seriesRepo) GetByProviderAndTmdbID(ctx context.Context, providerID models.ULID, tmdbID int64) ([]*models.SeriesItem, error) {
	var items []*models.SeriesItem
	if err := r.db.WithContext(ctx).
		Where("provider_id = ? AND tmdb_id = ?", providerID, tmdbID).
		Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting series by tmdb id: %w", err)
	}
	return items, nil
}

// GetSynced retrieves all active series carrying hydrated metadata.
func (r *seriesRepo) GetSynced(ctx context.Context) ([]*models.SeriesItem, error) {
	var items []*models.SeriesItem
	if err := r.db.WithContext(ctx).
		Where("active = ? AND tmdb_status = ?", true, models.MetadataSynced).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting synced series: %w", err)
	}
	return items, nil
}

// GetByTmdbID retrieves active synced series resolved to an upstream id
// across all providers.
func (r *seriesRepo) GetByTmdbID(ctx context.Context, tmdbID int64) ([]*models.SeriesItem, error) {
	var items []*models.SeriesItem
	if err := r.db.WithContext(ctx).
		Where("active = ? AND tmdb_status = ? AND tmdb_id = ?", true, models.MetadataSynced, tmdbID).
		Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("getting series by tmdb id: %w", err)
	}
	return items, nil
}

// Update updates an existing series.
func (r *seriesRepo) Update(ctx context.Context, item *models.SeriesItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("updating series: %w", err)
	}
	return nil
}

// Delete deletes a series by ID.
func (r *seriesRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Unscoped().Delete(&models.SeriesItem{}).Error; err != nil {
		return fmt.Errorf("deleting series: %w", err)
	}
	return nil
}

// CountByStatus returns the number of active series per metadata status.
func (r *seriesRepo) CountByStatus(ctx context.Context) (map[models.MetadataStatus]int64, error) {
	type row struct {
		TmdbStatus models.MetadataStatus
		N          int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&models.SeriesItem{}).
		Select("tmdb_status, COUNT(*) AS n").
		Where("active = ?", true).
		Group("tmdb_status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting series by status: %w", err)
	}
	counts := make(map[models.MetadataStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.TmdbStatus] = r.N
	}
	return counts, nil
}

// UpsertSeasons creates or updates seasons on (series_id, number).
func (r *seriesRepo) UpsertSeasons(ctx context.Context, seasons []*models.Season) error {
	if len(seasons) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "series_id"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "air_date", "episode_count", "cover_url", "updated_at",
		}),
	}).CreateInBatches(seasons, 500).Error; err != nil {
		return fmt.Errorf("upserting seasons: %w", err)
	}
	return nil
}

// UpsertEpisodes creates or updates episodes on (season_id, ext_id).
func (r *seriesRepo) UpsertEpisodes(ctx context.Context, episodes []*models.Episode) error {
	if len(episodes) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}, {Name: "ext_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"number", "title", "container_extension", "duration_seconds",
			"plot", "rating", "updated_at",
		}),
	}).CreateInBatches(episodes, 500).Error; err != nil {
		return fmt.Errorf("upserting episodes: %w", err)
	}
	return nil
}

// GetSeasons retrieves a series' seasons ordered by number.
func (r *seriesRepo) GetSeasons(ctx context.Context, seriesID models.ULID) ([]*models.Season, error) {
	var seasons []*models.Season
	if err := r.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("number ASC").Find(&seasons).Error; err != nil {
		return nil, fmt.Errorf("getting seasons: %w", err)
	}
	return seasons, nil
}

// GetEpisodes retrieves a season's episodes ordered by number.
func (r *seriesRepo) GetEpisodes(ctx context.Context, seasonID models.ULID) ([]*models.Episode, error) {
	var episodes []*models.Episode
	if err := r.db.WithContext(ctx).
		Where("season_id = ?", seasonID).
		Order("number ASC").Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("getting episodes: %w", err)
	}
	return episodes, nil
}

// Ensure seriesRepo implements SeriesRepository at compile time.
var _ SeriesRepository = (*seriesRepo)(nil)
