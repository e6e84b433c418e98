// Package repository defines the persistence boundaries of the domain layer.
package repository

import (
	"context"
	"time"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/pkg/constants"
)

// APIKeyRepository is the data-access boundary for API keys and their usage
// trail. Implementations live under internal/infrastructure/persistence.
type APIKeyRepository interface {
	// Create persists a new key.
	Create(ctx context.Context, key *models.APIKey) error

	// Update persists mutable fields of an existing key.
	Update(ctx context.Context, key *models.APIKey) error

	// FindByID returns a key by internal ID.
	FindByID(ctx context.Context, id string) (*models.APIKey, error)

	// FindByKeyID returns a key by public key identifier.
	FindByKeyID(ctx context.Context, keyID string) (*models.APIKey, error)

	// FindValidationCandidates returns every active, non-expired key.
	// Validation scans these linearly; the hash is secret-derived and
	// cannot be used as a lookup index.
	FindValidationCandidates(ctx context.Context, now time.Time) ([]*models.APIKey, error)

	// ListByUser returns all keys belonging to a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error)

	// UpdateStatus transitions a key's status.
	UpdateStatus(ctx context.Context, id string, status constants.APIKeyStatus) error

	// RecordUsage inserts one usage row.
	RecordUsage(ctx context.Context, usage *models.APIKeyUsage) error

	// CountUsageSince counts usage rows for a key since the given time.
	// Backs the per-key windowed rate limit.
	CountUsageSince(ctx context.Context, apiKeyID string, since time.Time) (int64, error)

	// Transaction runs fn against a transactional repository. Used by
	// rotation so that revoking the old key and creating its successor
	// commit atomically.
	Transaction(ctx context.Context, fn func(txRepo APIKeyRepository) error) error
}
