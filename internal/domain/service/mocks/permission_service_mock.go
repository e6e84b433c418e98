package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockPermissionService is a mock implementation of PermissionService.
type MockPermissionService struct {
	mock.Mock
}

func (m *MockPermissionService) EffectivePermissions(scopes []string) map[string]struct{} {
	args := m.Called(scopes)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]struct{})
}

func (m *MockPermissionService) HasPermission(scopes []string, resource, permission string) bool {
	args := m.Called(scopes, resource, permission)
	return args.Bool(0)
}

func (m *MockPermissionService) HasAnyPermission(scopes []string, required []string) bool {
	args := m.Called(scopes, required)
	return args.Bool(0)
}

func (m *MockPermissionService) ResourcePermissions(scopes []string, resource string) []string {
	args := m.Called(scopes, resource)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockPermissionService) SuggestScopes(required []string) []string {
	args := m.Called(required)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockPermissionService) CheckScopeConflicts(scopes []string) []string {
	args := m.Called(scopes)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}
