package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/pkg/constants"
)

// TestAPIKeyRepositoryPostgres runs the repository against a real PostgreSQL
// in a container. Requires Docker; skipped in short mode.
func TestAPIKeyRepositoryPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("devportal"),
		tcpostgres.WithUsername("devportal"),
		tcpostgres.WithPassword("devportal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.APIKey{}, &models.APIKeyUsage{}))

	repo := NewAPIKeyRepository(db)

	key := &models.APIKey{
		ID:      uuid.NewString(),
		KeyID:   "ak_integration",
		KeyHash: "hash-integration",
		Name:    "integration key",
		UserID:  "user-1",
		Scopes:  []string{"read", "analytics"},
		Status:  constants.APIKeyStatusActive,
	}
	require.NoError(t, repo.Create(ctx, key))

	stored, err := repo.FindByKeyID(ctx, "ak_integration")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "analytics"}, stored.Scopes,
		"json-serialized scopes survive the postgres round trip")

	candidates, err := repo.FindValidationCandidates(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	require.NoError(t, repo.UpdateStatus(ctx, key.ID, constants.APIKeyStatusRevoked))
	candidates, err = repo.FindValidationCandidates(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
