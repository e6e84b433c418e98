// Package mocks provides testify mocks for the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/repository"
	"github.com/turtacn/devportal/pkg/constants"
)

// MockAPIKeyRepository is a mock implementation of APIKeyRepository.
type MockAPIKeyRepository struct {
	mock.Mock
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) FindByKeyID(ctx context.Context, keyID string) (*models.APIKey, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) FindValidationCandidates(ctx context.Context, now time.Time) ([]*models.APIKey, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.APIKey), args.Error(1)
}

func (m *MockAPIKeyRepository) UpdateStatus(ctx context.Context, id string, status constants.APIKeyStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) RecordUsage(ctx context.Context, usage *models.APIKeyUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *MockAPIKeyRepository) CountUsageSince(ctx context.Context, apiKeyID string, since time.Time) (int64, error) {
	args := m.Called(ctx, apiKeyID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAPIKeyRepository) Transaction(ctx context.Context, fn func(txRepo repository.APIKeyRepository) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(m)
}
