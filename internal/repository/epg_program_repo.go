package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
)

// epgProgramRepo implements EpgProgramRepository using GORM.
type epgProgramRepo struct {
	db *gorm.DB
}

// NewEpgProgramRepository creates a new EpgProgramRepository.
func NewEpgProgramRepository(db *gorm.DB) *epgProgramRepo {
	return &epgProgramRepo{db: db}
}

// CreateInBatches creates programmes in batches for memory efficiency.
func (r *epgProgramRepo) CreateInBatches(ctx context.Context, programs []*models.EpgProgram, batchSize int) error {
	if len(programs) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	if err := r.db.WithContext(ctx).CreateInBatches(programs, batchSize).Error; err != nil {
		return fmt.Errorf("creating EPG programs in batches: %w", err)
	}
	return nil
}

// DeleteBySourceID deletes all programmes of a source. Uses the
// denormalized epg_source_id so the purge is one statement.
func (r *epgProgramRepo) DeleteBySourceID(ctx context.Context, sourceID models.ULID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("epg_source_id = ?", sourceID).
		Unscoped().Delete(&models.EpgProgram{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting EPG programs by source: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountBySourceID returns the number of programmes of a source.
func (r *epgProgramRepo) CountBySourceID(ctx context.Context, sourceID models.ULID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.EpgProgram{}).
		Where("epg_source_id = ?", sourceID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting EPG programs by source: %w", err)
	}
	return count, nil
}

// GetByChannel retrieves a channel's programmes overlapping [from, to),
// ordered by start time.
func (r *epgProgramRepo) GetByChannel(ctx context.Context, channelID models.ULID, from, to time.Time) ([]*models.EpgProgram, error) {
	var programs []*models.EpgProgram
	if err := r.db.WithContext(ctx).
		Where("channel_id = ? AND stop_at > ? AND start_at < ?", channelID, from, to).
		Order("start_at ASC").Find(&programs).Error; err != nil {
		return nil, fmt.Errorf("getting EPG programs by channel: %w", err)
	}
	return programs, nil
}

// Ensure epgProgramRepo implements EpgProgramRepository at compile time.
var _ EpgProgramRepository = (*epgProgramRepo)(nil)
