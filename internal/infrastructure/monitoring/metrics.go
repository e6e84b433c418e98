// Package monitoring provides Prometheus metrics and OpenTelemetry tracing.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/devportal/pkg/constants"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	RateLimitChecks    *prometheus.CounterVec
	RateLimitDenials   *prometheus.CounterVec
	AuthAttempts       *prometheus.CounterVec
	AuthLatency        *prometheus.HistogramVec
	KeyOperations      *prometheus.CounterVec
	ActiveBuckets      prometheus.GaugeFunc
	PermissionCacheHit *prometheus.CounterVec
}

// NewMetrics creates and registers the Prometheus metrics. bucketCount feeds
// the active-bucket gauge; pass nil to skip it.
func NewMetrics(bucketCount func() float64) *Metrics {
	m := &Metrics{
		RateLimitChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devportal_rate_limit_checks_total",
				Help: "Total number of rate limit checks.",
			},
			[]string{"rule", "result"},
		),
		RateLimitDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devportal_rate_limit_denials_total",
				Help: "Total number of rate limit denials.",
			},
			[]string{"rule"},
		),
		AuthAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devportal_auth_attempts_total",
				Help: "Total number of API key validation attempts.",
			},
			[]string{"result"},
		),
		AuthLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devportal_auth_latency_seconds",
				Help:    "Latency of API key validation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		KeyOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devportal_api_key_operations_total",
				Help: "Total number of API key lifecycle operations.",
			},
			[]string{"operation"},
		),
		PermissionCacheHit: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devportal_permission_cache_total",
				Help: "Permission resolution cache hits and misses.",
			},
			[]string{"outcome"},
		),
	}

	if bucketCount != nil {
		m.ActiveBuckets = promauto.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "devportal_rate_limit_active_buckets",
				Help: "Number of live token buckets.",
			},
			bucketCount,
		)
	}

	return m
}

// RecordCheck records one rate limit check outcome.
func (m *Metrics) RecordCheck(rule string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
		m.RateLimitDenials.WithLabelValues(rule).Inc()
	}
	m.RateLimitChecks.WithLabelValues(rule, result).Inc()
}

// RecordAuth records one validation attempt.
func (m *Metrics) RecordAuth(result string, duration time.Duration) {
	m.AuthAttempts.WithLabelValues(result).Inc()
	m.AuthLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordKeyOperation records an API key lifecycle event.
func (m *Metrics) RecordKeyOperation(event constants.AuditEventType) {
	m.KeyOperations.WithLabelValues(string(event)).Inc()
}
