package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// categoryRepo implements CategoryRepository using GORM.
type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *gorm.DB) *categoryRepo {
	return &categoryRepo{db: db}
}

// UpsertBatch creates or updates categories on (provider_id, kind, ext_id).
// Re-listed categories are reactivated.
func (r *categoryRepo) UpsertBatch(ctx context.Context, categories []*models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}, {Name: "kind"}, {Name: "ext_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "active", "updated_at",
		}),
	}).CreateInBatches(categories, 500).Error; err != nil {
		return fmt.Errorf("upserting categories: %w", err)
	}
	return nil
}

// DeactivateMissing deactivates active categories of a provider and kind
// whose ext_id is not in keep.
func (r *categoryRepo) DeactivateMissing(ctx context.Context, providerID models.ULID, kind models.CategoryKind, keep []string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("provider_id = ? AND kind = ? AND active = ?", providerID, kind, true)
	if len(keep) > 0 {
		query = query.Where("ext_id NOT IN ?", keep)
	}
	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("deactivating missing categories: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetByProvider retrieves a provider's categories of one kind.
func (r *categoryRepo) GetByProvider(ctx context.Context, providerID models.ULID, kind models.CategoryKind) ([]*models.Category, error) {
	var categories []*models.Category
	if err := r.db.WithContext(ctx).
		Where("provider_id = ? AND kind = ?", providerID, kind).
		Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("getting categories by provider: %w", err)
	}
	return categories, nil
}

// GetByID retrieves a category by ID.
func (r *categoryRepo) GetByID(ctx context.Context, id models.ULID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting category by ID: %w", err)
	}
	return &category, nil
}

// Ensure categoryRepo implements CategoryRepository at compile time.
var _ CategoryRepository = (*categoryRepo)(nil)
