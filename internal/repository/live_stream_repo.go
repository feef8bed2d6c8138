package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// liveStreamRepo implements LiveStreamRepository using GORM.
type liveStreamRepo struct {
	db *gorm.DB
}

// NewLiveStreamRepository creates a new LiveStreamRepository.
func NewLiveStreamRepository(db *gorm.DB) *liveStreamRepo {
	return &liveStreamRepo{db: db}
}

// UpsertBatch creates or updates streams on (provider_id, ext_id). Curation
// fields (approval, custom logo, EPG binding, failover alternates) are
// never touched on update.
func (r *liveStreamRepo) UpsertBatch(ctx context.Context, streams []*models.LiveStream) error {
	if len(streams) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}, {Name: "ext_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "normalized_name", "logo_url", "category_id",
			"channel_number", "active", "updated_at",
		}),
	}).CreateInBatches(streams, 500).Error; err != nil {
		return fmt.Errorf("upserting live streams: %w", err)
	}
	return nil
}

// DeactivateMissing deactivates active streams of a provider whose ext_id
// is not in keep.
func (r *liveStreamRepo) DeactivateMissing(ctx context.Context, providerID models.ULID, keep []int64) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LiveStream{}).
		Where("provider_id = ? AND active = ?", providerID, true)
	if len(keep) > 0 {
		query = query.Where("ext_id NOT IN ?", keep)
	}
	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivating missing live streams: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetByID retrieves a stream by ID.
func (r *liveStreamRepo) GetByID(ctx context.Context, id models.ULID) (*models.LiveStream, error) {
	var stream models.LiveStream
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&stream).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting live stream by ID: %w", err)
	}
	return &stream, nil
}

// GetByProviderID retrieves all streams of a provider.
func (r *liveStreamRepo) GetByProviderID(ctx context.Context, providerID models.ULID) ([]*models.LiveStream, error) {
	var streams []*models.LiveStream
	if err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("channel_number ASC, name ASC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting live streams by provider: %w", err)
	}
	return streams, nil
}

// GetUnbound retrieves a provider's active streams without an EPG binding.
func (r *liveStreamRepo) GetUnbound(ctx context.Context, providerID models.ULID, approvedOnly bool) ([]*models.LiveStream, error) {
	query := r.db.WithContext(ctx).
		Where("provider_id = ? AND active = ?", providerID, true).
		Where("epg_source_id IS NULL OR epg_channel_id = ''")
	if approvedOnly {
		query = query.Where("approved = ?", true)
	}
	var streams []*models.LiveStream
	if err := query.Order("name ASC").Find(&streams).Error; err != nil {
		return nil, fmt.Errorf("getting unbound live streams: %w", err)
	}
	return streams, nil
}

// Update updates an existing stream.
func (r *liveStreamRepo) Update(ctx context.Context, stream *models.LiveStream) error {
	if err := r.db.WithContext(ctx).Save(stream).Error; err != nil {
		return fmt.Errorf("updating live stream: %w", err)
	}
	return nil
}

// CountActive returns the number of active streams of a provider.
func (r *liveStreamRepo) CountActive(ctx context.Context, providerID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.LiveStream{}).
		Where("provider_id = ? AND active = ?", providerID, true).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting active live streams: %w", err)
	}
	return count, nil
}

// Ensure liveStreamRepo implements LiveStreamRepository at compile time.
var _ LiveStreamRepository = (*liveStreamRepo)(nil)
