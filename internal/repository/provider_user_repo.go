package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reybeld94/mediarr/internal/models"
	"gorm.io/gorm"
)

// codeCreateAttempts bounds retries when a generated access code collides
// with an existing row.
const codeCreateAttempts = 10

// providerUserRepo implements ProviderUserRepository using GORM.
type providerUserRepo struct {
	db *gorm.DB
}

// NewProviderUserRepository creates a new ProviderUserRepository.
func NewProviderUserRepository(db *gorm.DB) *providerUserRepo {
	return &providerUserRepo{db: db}
}

// CreateWithCode creates a user, generating a fresh access code and
// retrying on code collision.
func (r *providerUserRepo) CreateWithCode(ctx context.Context, user *models.ProviderUser) error {
	var lastErr error
	for attempt := 0; attempt < codeCreateAttempts; attempt++ {
		code, err := models.NewAccessCode()
		if err != nil {
			return err
		}
		user.Code = code
		if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
			if isUniqueViolation(err) {
				lastErr = err
				user.ID = models.ULID{}
				continue
			}
			return fmt.Errorf("creating provider user: %w", err)
		}
		return nil
	}
	return fmt.Errorf("creating provider user: exhausted code attempts: %w", lastErr)
}

// GetByCode retrieves a user by access code.
func (r *providerUserRepo) GetByCode(ctx context.Context, code string) (*models.ProviderUser, error) {
	var user models.ProviderUser
	if err := r.db.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting provider user by code: %w", err)
	}
	return &user, nil
}

// GetByProviderID retrieves all users of a provider.
func (r *providerUserRepo) GetByProviderID(ctx context.Context, providerID models.ULID) ([]*models.ProviderUser, error) {
	var users []*models.ProviderUser
	if err := r.db.WithContext(ctx).Where("provider_id = ?", providerID).Order("alias ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("getting provider users: %w", err)
	}
	return users, nil
}

// GetAdmin retrieves the provider's playback account, if any.
func (r *providerUserRepo) GetAdmin(ctx context.Context, providerID models.ULID) (*models.ProviderUser, error) {
	var user models.ProviderUser
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND UPPER(alias) = ?", providerID, models.AdminAlias).
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting provider admin user: %w", err)
	}
	return &user, nil
}

// Update updates an existing user.
func (r *providerUserRepo) Update(ctx context.Context, user *models.ProviderUser) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating provider user: %w", err)
	}
	return nil
}

// Delete deletes a user by ID.
func (r *providerUserRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Unscoped().Delete(&models.ProviderUser{}).Error; err != nil {
		return fmt.Errorf("deleting provider user: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure.
// GORM surfaces ErrDuplicatedKey on drivers that translate errors; the
// string check covers sqlite, which reports constraint names verbatim.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

// Ensure providerUserRepo implements ProviderUserRepository at compile time.
var _ ProviderUserRepository = (*providerUserRepo)(nil)
