package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// epgChannelRepo implements EpgChannelRepository using GORM.
type epgChannelRepo struct {
	db *gorm.DB
}

// NewEpgChannelRepository creates a new EpgChannelRepository.
func NewEpgChannelRepository(db *gorm.DB) *epgChannelRepo {
	return &epgChannelRepo{db: db}
}

// UpsertBatch creates or updates channels on (epg_source_id, xmltv_id),
// tracking display name and icon drift between ingests.
func (r *epgChannelRepo) UpsertBatch(ctx context.Context, channels []*models.EpgChannel) error {
	if len(channels) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "epg_source_id"}, {Name: "xmltv_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "icon_url", "updated_at",
		}),
	}).CreateInBatches(channels, 500).Error; err != nil {
		return fmt.Errorf("upserting EPG channels: %w", err)
	}
	return nil
}

// GetBySourceID retrieves all channels of a source.
func (r *epgChannelRepo) GetBySourceID(ctx context.Context, sourceID models.ULID) ([]*models.EpgChannel, error) {
	var channels []*models.EpgChannel
	if err := r.db.WithContext(ctx).
		Where("epg_source_id = ?", sourceID).
		Order("display_name ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("getting EPG channels by source: %w", err)
	}
	return channels, nil
}

// GetByXmltvID retrieves a channel by source and document id.
func (r *epgChannelRepo) GetByXmltvID(ctx context.Context, sourceID models.ULID, xmltvID string) (*models.EpgChannel, error) {
	var channel models.EpgChannel
	if err := r.db.WithContext(ctx).
		Where("epg_source_id = ? AND xmltv_id = ?", sourceID, xmltvID).
		First(&channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting EPG channel by xmltv id: %w", err)
	}
	return &channel, nil
}

// DeleteBySourceID deletes all channels of a source.
func (r *epgChannelRepo) DeleteBySourceID(ctx context.Context, sourceID models.ULID) error {
	if err := r.db.WithContext(ctx).
		Where("epg_source_id = ?", sourceID).
		Unscoped().Delete(&models.EpgChannel{}).Error; err != nil {
		return fmt.Errorf("deleting EPG channels by source: %w", err)
	}
	return nil
}

// Ensure epgChannelRepo implements EpgChannelRepository at compile time.
var _ EpgChannelRepository = (*epgChannelRepo)(nil)
