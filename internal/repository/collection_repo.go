package repository

import (
	"context"
	"fmt"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
)

// collectionRepo implements CollectionRepository using GORM.
type collectionRepo struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(db *gorm.DB) *collectionRepo {
	return &collectionRepo{db: db}
}

// Create creates a new collection.
func (r *collectionRepo) Create(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// GetByID retrieves a collection by ID.
func (r *collectionRepo) GetByID(ctx context.Context, id models.ULID) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection by ID: %w", err)
	}
	return &collection, nil
}

// GetBySlug retrieves a collection by slug.
func (r *collectionRepo) GetBySlug(ctx context.Context, slug string) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&collection).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection by slug: %w", err)
	}
	return &collection, nil
}

// GetAll retrieves all collections in display order.
func (r *collectionRepo) GetAll(ctx context.Context) ([]*models.Collection, error) {
	var collections []*models.Collection
	if err := r.db.WithContext(ctx).Order("order_index ASC, created_at ASC").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("getting all collections: %w", err)
	}
	return collections, nil
}

// GetEnabled retrieves enabled collections in display order.
func (r *collectionRepo) GetEnabled(ctx context.Context) ([]*models.Collection, error) {
	var collections []*models.Collection
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("order_index ASC, created_at ASC").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("getting enabled collections: %w", err)
	}
	return collections, nil
}

// Update updates an existing collection.
func (r *collectionRepo) Update(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Save(collection).Error; err != nil {
		return fmt.Errorf("updating collection: %w", err)
	}
	return nil
}

// Delete deletes a collection by ID.
func (r *collectionRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Unscoped().Delete(&models.Collection{}).Error; err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Ensure collectionRepo implements CollectionRepository at compile time.
var _ CollectionRepository = (*collectionRepo)(nil)
