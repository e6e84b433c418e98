package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/repository"
	"github.com/turtacn/devportal/pkg/constants"
)

// The repository is gorm-generic; sqlite in memory exercises the query logic
// without a server. The postgres path is covered by the integration test.
func newTestRepo(t *testing.T) repository.APIKeyRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.APIKey{}, &models.APIKeyUsage{}))
	return NewAPIKeyRepository(db)
}

func newStoredKey(userID string) *models.APIKey {
	id := uuid.NewString()
	return &models.APIKey{
		ID:      id,
		KeyID:   "ak_" + id[:8],
		KeyHash: "hash-" + id[:8],
		Name:    "test key",
		UserID:  userID,
		Scopes:  []string{"read", "keys"},
		Status:  constants.APIKeyStatusActive,
	}
}

func TestAPIKeyRepositoryCreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	key := newStoredKey("user-1")
	require.NoError(t, repo.Create(ctx, key))

	byID, err := repo.FindByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, key.KeyID, byID.KeyID)
	assert.Equal(t, []string{"read", "keys"}, byID.Scopes)

	byKeyID, err := repo.FindByKeyID(ctx, key.KeyID)
	require.NoError(t, err)
	assert.Equal(t, key.ID, byKeyID.ID)

	_, err = repo.FindByID(ctx, "missing")
	assert.Error(t, err)
}

func TestAPIKeyRepositoryValidationCandidates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	active := newStoredKey("user-1")
	require.NoError(t, repo.Create(ctx, active))

	revoked := newStoredKey("user-1")
	revoked.Status = constants.APIKeyStatusRevoked
	require.NoError(t, repo.Create(ctx, revoked))

	expired := newStoredKey("user-1")
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, expired))

	future := newStoredKey("user-1")
	later := now.Add(time.Hour)
	future.ExpiresAt = &later
	require.NoError(t, repo.Create(ctx, future))

	candidates, err := repo.FindValidationCandidates(ctx, now)
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{active.ID, future.ID}, ids,
		"revoked and expired keys are not candidates")
}

func TestAPIKeyRepositoryListByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := newStoredKey("user-1")
		key.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, key))
	}
	require.NoError(t, repo.Create(ctx, newStoredKey("user-2")))

	keys, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.True(t, !keys[0].CreatedAt.Before(keys[1].CreatedAt), "newest first")
}

func TestAPIKeyRepositoryUpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	key := newStoredKey("user-1")
	require.NoError(t, repo.Create(ctx, key))

	require.NoError(t, repo.UpdateStatus(ctx, key.ID, constants.APIKeyStatusRevoked))
	stored, err := repo.FindByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.APIKeyStatusRevoked, stored.Status)

	assert.Error(t, repo.UpdateStatus(ctx, "missing", constants.APIKeyStatusRevoked))
}

func TestAPIKeyRepositoryUsageWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	key := newStoredKey("user-1")
	require.NoError(t, repo.Create(ctx, key))

	for _, age := range []time.Duration{time.Minute, 30 * time.Minute, 2 * time.Hour} {
		require.NoError(t, repo.RecordUsage(ctx, &models.APIKeyUsage{
			ID:        uuid.NewString(),
			APIKeyID:  key.ID,
			Method:    "GET",
			Endpoint:  "/api/v1/whoami",
			CreatedAt: now.Add(-age),
		}))
	}

	count, err := repo.CountUsageSince(ctx, key.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "only usage inside the window counts")

	none, err := repo.CountUsageSince(ctx, "other-key", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestAPIKeyRepositoryTransactionRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	key := newStoredKey("user-1")
	err := repo.Transaction(ctx, func(tx repository.APIKeyRepository) error {
		if err := tx.Create(ctx, key); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = repo.FindByID(ctx, key.ID)
	assert.Error(t, err, "rolled-back insert must not be visible")
}

func TestAPIKeyRepositoryTransactionCommits(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := newStoredKey("user-1")
	require.NoError(t, repo.Create(ctx, old))

	successor := newStoredKey("user-1")
	successor.RotatedFrom = old.ID

	err := repo.Transaction(ctx, func(tx repository.APIKeyRepository) error {
		if err := tx.Create(ctx, successor); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, old.ID, constants.APIKeyStatusRevoked)
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.APIKeyStatusRevoked, stored.Status)

	rotated, err := repo.FindByID(ctx, successor.ID)
	require.NoError(t, err)
	assert.Equal(t, old.ID, rotated.RotatedFrom)
}
