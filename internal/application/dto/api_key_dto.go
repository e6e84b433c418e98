// Package dto carries request and response shapes between the transport layer
// and the application services.
package dto

import (
	"time"

	"github.com/turtacn/devportal/internal/domain/models"
)

// CreateAPIKeyRequest issues a new key for a user.
type CreateAPIKeyRequest struct {
	UserID          string   `json:"user_id" binding:"required"`
	Name            string   `json:"name" binding:"required"`
	Scopes          []string `json:"scopes" binding:"required,min=1"`
	AllowedIPs      []string `json:"allowed_ips"`
	RateLimit       int      `json:"rate_limit"`
	RateLimitPeriod string   `json:"rate_limit_period"`
	ExpiresInDays   int      `json:"expires_in_days"`
}

// APIKeyCreatedResponse is returned exactly once per issuance or rotation.
// SecretKey is not recoverable afterwards.
type APIKeyCreatedResponse struct {
	APIKeyResponse
	SecretKey string `json:"secret_key"`
}

// APIKeyResponse is the safe view of a key: no hash, no secret.
type APIKeyResponse struct {
	ID              string     `json:"id"`
	KeyID           string     `json:"key_id"`
	Name            string     `json:"name"`
	UserID          string     `json:"user_id"`
	Scopes          []string   `json:"scopes"`
	Status          string     `json:"status"`
	AllowedIPs      []string   `json:"allowed_ips,omitempty"`
	RateLimit       int        `json:"rate_limit,omitempty"`
	RateLimitPeriod string     `json:"rate_limit_period,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	TotalRequests   int64      `json:"total_requests"`
	RotatedFrom     string     `json:"rotated_from,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewAPIKeyResponse maps a domain key onto its safe view.
func NewAPIKeyResponse(key *models.APIKey) *APIKeyResponse {
	return &APIKeyResponse{
		ID:              key.ID,
		KeyID:           key.KeyID,
		Name:            key.Name,
		UserID:          key.UserID,
		Scopes:          key.Scopes,
		Status:          string(key.Status),
		AllowedIPs:      key.AllowedIPs,
		RateLimit:       key.RateLimit,
		RateLimitPeriod: key.RateLimitPeriod,
		ExpiresAt:       key.ExpiresAt,
		LastUsedAt:      key.LastUsedAt,
		TotalRequests:   key.TotalRequests,
		RotatedFrom:     key.RotatedFrom,
		CreatedAt:       key.CreatedAt,
	}
}

// ValidateKeyRequest authenticates one request made with an API secret.
type ValidateKeyRequest struct {
	// SecretKey is the presented credential ("sk_..." prefixed).
	SecretKey string

	// ClientIP is the caller's address, checked against the key allowlist.
	ClientIP string

	// RequiredPermissions are "resource:permission" strings the request
	// needs. All of them must be granted by the key's scopes.
	RequiredPermissions []string
}

// RecordUsageRequest records one authenticated request for analytics and the
// per-key windowed limit.
type RecordUsageRequest struct {
	APIKeyID   string
	Method     string
	Endpoint   string
	StatusCode int
	DurationMs int64
	ClientIP   string
	UserAgent  string
}
