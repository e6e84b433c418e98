// Package mocks provides testify mocks for the domain service interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/devportal/internal/domain/models"
)

// MockAuditService is a mock implementation of AuditService.
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditService) Close() error {
	args := m.Called()
	return args.Error(0)
}
