// Package service defines the domain service boundaries. Implementations
// live in internal/infrastructure and internal/application.
package service

import (
	"context"

	"github.com/turtacn/devportal/internal/domain/models"
)

// RateLimitService coordinates rule registration and token-bucket checks.
// All state is owned by the implementation; callers never reach into bucket
// internals.
type RateLimitService interface {
	// AddRule registers a rule, replacing any same-named rule.
	AddRule(rule *models.RateLimitRule) error

	// UpdateRule mutates a registered rule in place.
	UpdateRule(rule *models.RateLimitRule) error

	// RemoveRule deletes a rule and purges all derived bucket and
	// progressive-limiter state keyed under it.
	RemoveRule(name string) error

	// GetRule returns a registered rule.
	GetRule(name string) (*models.RateLimitRule, bool)

	// ListRules returns all registered rules.
	ListRules() []*models.RateLimitRule

	// Check consumes tokens for one rule/identifier pair. Unknown or
	// disabled rules always allow, with the reason set.
	Check(ctx context.Context, ruleName, identifier string, tokens float64) *models.RateLimitResult

	// CheckMany evaluates every check independently. Callers combine the
	// results; the first denial in slice order wins.
	CheckMany(ctx context.Context, checks []models.RateLimitCheck) []*models.RateLimitResult

	// ResetBucket refills a bucket to capacity.
	ResetBucket(ctx context.Context, ruleName, identifier string) error

	// Status returns the administrative view of one bucket.
	Status(ctx context.Context, ruleName, identifier string) (*models.RateLimitStatus, error)

	// Analytics aggregates check outcomes for an identifier over the
	// trailing window.
	Analytics(ruleName, identifier string, windowMinutes int) *models.RateLimitAnalytics

	// SystemStats summarizes limiter state across all rules.
	SystemStats() *models.RateLimitSystemStats
}

// PermissionService resolves scope sets into effective permissions through
// the static scope-inheritance graph.
type PermissionService interface {
	// EffectivePermissions returns the transitive closure of
	// "resource:permission" strings granted by the scopes.
	EffectivePermissions(scopes []string) map[string]struct{}

	// HasPermission reports whether the scopes grant resource:permission.
	HasPermission(scopes []string, resource, permission string) bool

	// HasAnyPermission reports whether the scopes grant at least one of
	// the required "resource:permission" strings.
	HasAnyPermission(scopes []string, required []string) bool

	// ResourcePermissions filters the effective set down to one resource.
	ResourcePermissions(scopes []string, resource string) []string

	// SuggestScopes returns the scopes whose effective set covers all
	// required permissions, smallest effective set first.
	SuggestScopes(required []string) []string

	// CheckScopeConflicts returns the scopes in the list already implied
	// by another scope in the same list.
	CheckScopeConflicts(scopes []string) []string
}

// AuditService is the usage/audit trail sink.
type AuditService interface {
	// LogEvent publishes one audit event.
	LogEvent(ctx context.Context, event models.AuditEvent) error

	// Close flushes and releases the sink.
	Close() error
}
