// Package models defines the domain entities of the developer portal:
// API keys, usage records, rate-limit rules, and audit events.
package models

import (
	"time"

	"github.com/turtacn/devportal/pkg/constants"
)

// APIKey is a credential issued to a portal user. The plaintext secret is
// never stored; only its HMAC-SHA256 digest survives issuance.
type APIKey struct {
	// ID is the internal UUID of the key record.
	ID string `gorm:"primaryKey"`

	// KeyID is the public identifier, prefixed "ak_". Safe to log.
	KeyID string `gorm:"uniqueIndex"`

	// KeyHash is the hex HMAC-SHA256 of the secret under the app secret.
	KeyHash string `gorm:"index"`

	// Name is the user-supplied label.
	Name string

	// UserID identifies the owning portal user.
	UserID string `gorm:"index"`

	// Scopes are the scope names granted to this key.
	Scopes []string `gorm:"serializer:json"`

	// Status is the lifecycle state. Revoked is terminal.
	Status constants.APIKeyStatus `gorm:"index"`

	// AllowedIPs restricts use to the listed client IPs when non-empty.
	AllowedIPs []string `gorm:"serializer:json"`

	// RateLimit is the maximum requests per RateLimitPeriod. Zero disables
	// the per-key windowed limit.
	RateLimit int

	// RateLimitPeriod is the window name: "minute", "hour", or "day".
	RateLimitPeriod string

	// ExpiresAt is the optional expiry. Nil means no expiry.
	ExpiresAt *time.Time

	// LastUsedAt is updated on every successful validation.
	LastUsedAt *time.Time

	// TotalRequests counts successful validations.
	TotalRequests int64

	// RotatedFrom is the ID of the predecessor key when this key was
	// produced by rotation.
	RotatedFrom string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName maps the model onto the api_keys table.
func (APIKey) TableName() string { return "api_keys" }

// IsUsable reports whether the key may authenticate a request at now:
// active status and not expired.
func (k *APIKey) IsUsable(now time.Time) bool {
	if k.Status != constants.APIKeyStatusActive {
		return false
	}
	if k.ExpiresAt != nil && !now.Before(*k.ExpiresAt) {
		return false
	}
	return true
}

// HasScope reports whether the key carries the named scope directly.
// Inherited permissions are resolved by the permission service, not here.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IPAllowed reports whether clientIP passes the allowlist. An empty
// allowlist admits every IP.
func (k *APIKey) IPAllowed(clientIP string) bool {
	if len(k.AllowedIPs) == 0 {
		return true
	}
	for _, ip := range k.AllowedIPs {
		if ip == clientIP {
			return true
		}
	}
	return false
}

// WindowDuration translates RateLimitPeriod into a duration. Unknown or
// empty periods default to one minute.
func (k *APIKey) WindowDuration() time.Duration {
	switch k.RateLimitPeriod {
	case "hour":
		return time.Hour
	case "day":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// APIKeyUsage is one authenticated request, recorded for analytics and for
// the per-key windowed rate limit.
type APIKeyUsage struct {
	ID         string `gorm:"primaryKey"`
	APIKeyID   string `gorm:"index:idx_usage_key_time"`
	Method     string
	Endpoint   string
	StatusCode int
	DurationMs int64
	ClientIP   string
	UserAgent  string
	CreatedAt  time.Time `gorm:"index:idx_usage_key_time"`
}

// TableName maps the model onto the api_key_usage table.
func (APIKeyUsage) TableName() string { return "api_key_usage" }
