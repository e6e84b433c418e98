package models

import (
	"time"

	"github.com/turtacn/devportal/pkg/constants"
)

// AuditEvent is one entry of the usage/audit trail, published to the audit
// sink asynchronously so request latency never depends on the broker.
type AuditEvent struct {
	ID         string                   `json:"id"`
	Type       constants.AuditEventType `json:"type"`
	APIKeyID   string                   `json:"api_key_id,omitempty"`
	UserID     string                   `json:"user_id,omitempty"`
	Method     string                   `json:"method,omitempty"`
	Endpoint   string                   `json:"endpoint,omitempty"`
	StatusCode int                      `json:"status_code,omitempty"`
	DurationMs int64                    `json:"duration_ms,omitempty"`
	ClientIP   string                   `json:"client_ip,omitempty"`
	UserAgent  string                   `json:"user_agent,omitempty"`
	Detail     map[string]interface{}   `json:"detail,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}
