package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/repository"
	"github.com/turtacn/devportal/pkg/constants"
	apperrors "github.com/turtacn/devportal/pkg/errors"
)

// APIKeyRepository is the gorm implementation of the API key data boundary.
type APIKeyRepository struct {
	db *gorm.DB
}

// NewAPIKeyRepository creates a repository over an ORM handle.
func NewAPIKeyRepository(db *gorm.DB) repository.APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create persists a new key.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

// Update persists mutable fields of an existing key.
func (r *APIKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	return r.db.WithContext(ctx).Save(key).Error
}

// FindByID returns a key by internal ID.
func (r *APIKeyRepository) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	var key models.APIKey
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound("api key")
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// FindByKeyID returns a key by public key identifier.
func (r *APIKeyRepository) FindByKeyID(ctx context.Context, keyID string) (*models.APIKey, error) {
	var key models.APIKey
	err := r.db.WithContext(ctx).Where("key_id = ?", keyID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound("api key")
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// FindValidationCandidates returns every active key that has not expired.
// The secret hash cannot serve as a lookup index, so validation scans these
// rows linearly; the query at least narrows the scan to usable keys.
func (r *APIKeyRepository) FindValidationCandidates(ctx context.Context, now time.Time) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	err := r.db.WithContext(ctx).
		Where("status = ?", constants.APIKeyStatusActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&keys).Error
	return keys, err
}

// ListByUser returns all keys belonging to a user, newest first.
func (r *APIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

// UpdateStatus transitions a key's status.
func (r *APIKeyRepository) UpdateStatus(ctx context.Context, id string, status constants.APIKeyStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound("api key")
	}
	return nil
}

// RecordUsage inserts one usage row.
func (r *APIKeyRepository) RecordUsage(ctx context.Context, usage *models.APIKeyUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// CountUsageSince counts usage rows for a key since the given time.
func (r *APIKeyRepository) CountUsageSince(ctx context.Context, apiKeyID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.APIKeyUsage{}).
		Where("api_key_id = ? AND created_at >= ?", apiKeyID, since).
		Count(&count).Error
	return count, err
}

// Transaction runs fn against a transactional repository.
func (r *APIKeyRepository) Transaction(ctx context.Context, fn func(txRepo repository.APIKeyRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&APIKeyRepository{db: tx})
	})
}
