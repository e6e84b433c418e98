package models

import (
	"fmt"
	"time"

	"github.com/turtacn/devportal/pkg/constants"
)

// RateLimitRule configures one rate-limit dimension. Rules are registered at
// startup from config or through the admin API and are mutable in place.
type RateLimitRule struct {
	// Name uniquely identifies the rule.
	Name string `json:"name"`

	// Scope is the dimension the rule applies to.
	Scope constants.RateLimitScope `json:"scope"`

	// TokensPerSecond is the base refill rate.
	TokensPerSecond float64 `json:"tokens_per_second"`

	// MaxTokens is the bucket capacity.
	MaxTokens float64 `json:"max_tokens"`

	// BurstMultiplier above 1 enlarges the effective capacity.
	BurstMultiplier float64 `json:"burst_multiplier"`

	// Action is what the caller should do on violation.
	Action constants.RateLimitAction `json:"action"`

	// Enabled gates the rule. Disabled rules always allow.
	Enabled bool `json:"enabled"`

	// Progressive enables violation/success-driven rate adjustment.
	Progressive bool `json:"progressive"`

	// Adaptive marks the rule for load-driven tuning.
	Adaptive bool `json:"adaptive"`

	// PenaltyFactor in (0, 1] shrinks the multiplier on repeated violations.
	PenaltyFactor float64 `json:"penalty_factor"`

	// RecoveryFactor >= 1 grows the multiplier on sustained good behavior.
	RecoveryFactor float64 `json:"recovery_factor"`

	// MinLimit and MaxLimit bound the progressive multiplier.
	MinLimit float64 `json:"min_limit"`
	MaxLimit float64 `json:"max_limit"`
}

// Validate checks the rule invariants.
func (r *RateLimitRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.TokensPerSecond <= 0 {
		return fmt.Errorf("rule %q: tokens_per_second must be positive", r.Name)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("rule %q: max_tokens must be positive", r.Name)
	}
	if r.Progressive {
		if r.PenaltyFactor <= 0 || r.PenaltyFactor > 1 {
			return fmt.Errorf("rule %q: penalty_factor must be in (0, 1]", r.Name)
		}
		if r.RecoveryFactor < 1 {
			return fmt.Errorf("rule %q: recovery_factor must be >= 1", r.Name)
		}
		if r.MinLimit <= 0 || r.MaxLimit < r.MinLimit {
			return fmt.Errorf("rule %q: require 0 < min_limit <= max_limit", r.Name)
		}
	}
	return nil
}

// Capacity returns the effective bucket capacity, honoring the burst
// multiplier when it enlarges the bucket.
func (r *RateLimitRule) Capacity() float64 {
	if r.BurstMultiplier > 1 {
		return r.MaxTokens * r.BurstMultiplier
	}
	return r.MaxTokens
}

// RateLimitCheck names one rule/identifier pair to evaluate.
type RateLimitCheck struct {
	RuleName   string  `json:"rule_name"`
	Identifier string  `json:"identifier"`
	Tokens     float64 `json:"tokens"`
}

// RateLimitResult is the outcome of one rate-limit check.
type RateLimitResult struct {
	// Allowed reports whether the request may proceed under this rule.
	Allowed bool `json:"allowed"`

	// RuleName and Identifier echo the check.
	RuleName   string `json:"rule_name"`
	Identifier string `json:"identifier"`

	// TokensRemaining is the bucket level after the check.
	TokensRemaining float64 `json:"tokens_remaining"`

	// ResetTime estimates when the bucket is full again. When tokens are
	// currently sufficient this is a conservative full-refill estimate,
	// not "now".
	ResetTime time.Time `json:"reset_time"`

	// RetryAfter is the advisory back-off, set only when denied.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// CurrentRate is the effective refill rate, after any progressive
	// adjustment.
	CurrentRate float64 `json:"current_rate"`

	// Action is the rule's configured violation action.
	Action constants.RateLimitAction `json:"action"`

	// Reason explains non-standard outcomes (unknown rule, disabled rule).
	Reason string `json:"reason,omitempty"`
}

// RateLimitStatus is the administrative view of one bucket.
type RateLimitStatus struct {
	RuleName         string    `json:"rule_name"`
	Identifier       string    `json:"identifier"`
	TokensRemaining  float64   `json:"tokens_remaining"`
	Capacity         float64   `json:"capacity"`
	CurrentRate      float64   `json:"current_rate"`
	TotalRequests    int64     `json:"total_requests"`
	RejectedRequests int64     `json:"rejected_requests"`
	Multiplier       float64   `json:"multiplier"`
	LastRefill       time.Time `json:"last_refill"`
}

// AnalyticsPoint is one recorded check outcome.
type AnalyticsPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	Allowed         bool      `json:"allowed"`
	TokensRemaining float64   `json:"tokens_remaining"`
}

// RateLimitAnalytics aggregates check outcomes over a window.
type RateLimitAnalytics struct {
	RuleName          string  `json:"rule_name"`
	Identifier        string  `json:"identifier"`
	WindowMinutes     int     `json:"window_minutes"`
	TotalChecks       int     `json:"total_checks"`
	AllowedChecks     int     `json:"allowed_checks"`
	DeniedChecks      int     `json:"denied_checks"`
	SuccessRate       float64 `json:"success_rate"`
	RequestsPerMinute float64 `json:"requests_per_minute"`
}

// RateLimitSystemStats summarizes limiter state across all rules.
type RateLimitSystemStats struct {
	Rules              int   `json:"rules"`
	EnabledRules       int   `json:"enabled_rules"`
	ActiveBuckets      int   `json:"active_buckets"`
	ActiveProgressives int   `json:"active_progressives"`
	TotalChecks        int64 `json:"total_checks"`
	TotalDenied        int64 `json:"total_denied"`
}
