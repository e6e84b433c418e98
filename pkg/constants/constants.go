// Package constants defines shared constants for the developer-portal backend:
// API key formats and statuses, permission scopes, rate-limit defaults, error
// codes, and context keys.
package constants

import "time"

// ================================================================================
// API Key Constants
// ================================================================================

// KeyIDPrefix is the public prefix of every API key identifier.
const KeyIDPrefix = "ak_"

// SecretKeyPrefix is the prefix of every API secret. Secrets are shown to the
// caller exactly once at creation or rotation time.
const SecretKeyPrefix = "sk_"

// KeyIDRandomBytes is the number of random bytes behind a key identifier.
const KeyIDRandomBytes = 16

// SecretKeyRandomBytes is the number of random bytes behind a secret key.
const SecretKeyRandomBytes = 32

// APIKeyStatus represents the lifecycle status of an API key.
type APIKeyStatus string

const (
	// APIKeyStatusActive indicates the key can authenticate requests.
	APIKeyStatusActive APIKeyStatus = "active"

	// APIKeyStatusInactive indicates the key is temporarily disabled.
	APIKeyStatusInactive APIKeyStatus = "inactive"

	// APIKeyStatusRevoked is terminal. A revoked key never validates again.
	APIKeyStatusRevoked APIKeyStatus = "revoked"
)

// ================================================================================
// Scope Constants
// ================================================================================

// Scope is a named bundle of permissions attached to an API key.
type Scope string

const (
	// ScopeRead grants read access to users and API keys.
	ScopeRead Scope = "read"

	// ScopeWrite grants write access on top of read.
	ScopeWrite Scope = "write"

	// ScopeAnalytics grants access to usage analytics and key monitoring.
	ScopeAnalytics Scope = "analytics"

	// ScopePayments grants access to the payment demo surface.
	ScopePayments Scope = "payments"

	// ScopeKeys grants API key lifecycle management.
	ScopeKeys Scope = "keys"

	// ScopeAdmin inherits every other scope. Admin supremacy is expressed
	// through the permission graph, not a special-cased check.
	ScopeAdmin Scope = "admin"
)

// ================================================================================
// Rate Limiting Constants
// ================================================================================

// RateLimitScope defines the dimension a rate-limit rule applies to.
type RateLimitScope string

const (
	// RateLimitScopeGlobal applies to all requests.
	RateLimitScopeGlobal RateLimitScope = "global"

	// RateLimitScopeUser applies per user.
	RateLimitScopeUser RateLimitScope = "user"

	// RateLimitScopeAPIKey applies per API key.
	RateLimitScopeAPIKey RateLimitScope = "api_key"

	// RateLimitScopeIP applies per client IP.
	RateLimitScopeIP RateLimitScope = "ip"

	// RateLimitScopeEndpoint applies per endpoint.
	RateLimitScopeEndpoint RateLimitScope = "endpoint"
)

// RateLimitAction defines what happens when a rule is violated.
type RateLimitAction string

const (
	// RateLimitActionReject rejects the request with 429.
	RateLimitActionReject RateLimitAction = "reject"

	// RateLimitActionDelay delays the request until tokens are available.
	RateLimitActionDelay RateLimitAction = "delay"

	// RateLimitActionThrottle degrades service for the identifier.
	RateLimitActionThrottle RateLimitAction = "throttle"

	// RateLimitActionWarn allows the request but records the violation.
	RateLimitActionWarn RateLimitAction = "warn"
)

const (
	// ViolationHistorySize bounds the rolling violation window per limiter.
	ViolationHistorySize = 100

	// PenaltyWindow is the lookback used when deciding to penalize.
	PenaltyWindow = 5 * time.Minute

	// PenaltyThreshold is the violation count within PenaltyWindow that
	// triggers a penalty adjustment.
	PenaltyThreshold = 3

	// RecoveryWindow is the clean-history lookback required before recovery.
	RecoveryWindow = 10 * time.Minute

	// AdjustmentCooldown is the minimum gap between rate adjustments.
	AdjustmentCooldown = 5 * time.Minute

	// AnalyticsRetention is how long per-identifier data points are kept.
	AnalyticsRetention = time.Hour

	// DefaultMaxBuckets bounds the bucket and progressive-limiter maps.
	DefaultMaxBuckets = 10_000

	// DefaultBucketIdleTTL is how long an untouched bucket survives cleanup.
	DefaultBucketIdleTTL = 30 * time.Minute

	// CacheKeyPrefixRateLimit is the Redis key prefix for bucket state.
	CacheKeyPrefixRateLimit = "ratelimit"
)

// ================================================================================
// Error Codes
// ================================================================================

// ErrorCode is a machine-readable error code carried by AppError.
type ErrorCode string

const (
	// ErrCodeInvalidRequest indicates a malformed or incomplete request.
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeUnauthorized indicates a missing or invalid credential.
	ErrCodeUnauthorized ErrorCode = "unauthorized"

	// ErrCodeForbidden indicates a valid credential without the required permission.
	ErrCodeForbidden ErrorCode = "forbidden"

	// ErrCodeNotFound indicates a missing resource.
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeConflict indicates a state conflict (e.g. rotating a revoked key).
	ErrCodeConflict ErrorCode = "conflict"

	// ErrCodeRateLimitExceeded indicates the request was rate limited.
	ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"

	// ErrCodeServerError indicates an unexpected internal failure.
	ErrCodeServerError ErrorCode = "server_error"

	// ErrCodeServiceUnavailable indicates a dependency outage.
	ErrCodeServiceUnavailable ErrorCode = "service_unavailable"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type for values stored in request contexts.
type ContextKey string

const (
	// ContextKeyAPIKey holds the authenticated *models.APIKey.
	ContextKeyAPIKey ContextKey = "api_key"

	// ContextKeyRequestID holds the request correlation ID.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID holds the trace ID when tracing is enabled.
	ContextKeyTraceID ContextKey = "trace_id"
)

// ================================================================================
// Audit Event Types
// ================================================================================

// AuditEventType classifies audit trail events.
type AuditEventType string

const (
	// EventTypeKeyCreated records API key issuance.
	EventTypeKeyCreated AuditEventType = "api_key_created"

	// EventTypeKeyRotated records API key rotation.
	EventTypeKeyRotated AuditEventType = "api_key_rotated"

	// EventTypeKeyRevoked records API key revocation.
	EventTypeKeyRevoked AuditEventType = "api_key_revoked"

	// EventTypeKeyUsed records a successful authenticated request.
	EventTypeKeyUsed AuditEventType = "api_key_used"

	// EventTypeAuthFailed records a failed validation attempt.
	EventTypeAuthFailed AuditEventType = "auth_failed"

	// EventTypeRateLimitExceeded records a rate-limit denial.
	EventTypeRateLimitExceeded AuditEventType = "rate_limit_exceeded"
)
