package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/constants"
	"github.com/turtacn/devportal/pkg/errors"
	"github.com/turtacn/devportal/pkg/logger"
)

// Manager owns the rule registry, the bucket store, and the per-identifier
// progressive limiters. All mutation goes through manager methods; nothing
// outside this package touches bucket internals.
type Manager struct {
	mu           sync.RWMutex
	rules        map[string]*models.RateLimitRule
	progressives *lru.Cache[string, *ProgressiveLimiter]
	store        bucketStore
	analytics    *gocache.Cache
	logger       logger.Logger

	totalChecks atomic.Int64
	totalDenied atomic.Int64

	now func() time.Time
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// MaxBuckets bounds the in-memory bucket and progressive-limiter maps.
	MaxBuckets int

	// RedisClient, when set, moves bucket state to Redis so limits hold
	// across server instances. Progressive state and analytics stay local.
	RedisClient redis.UniversalClient
}

// NewManager creates a rate-limit manager with no rules registered.
func NewManager(opts ManagerOptions, log logger.Logger) (*Manager, error) {
	if opts.MaxBuckets <= 0 {
		opts.MaxBuckets = constants.DefaultMaxBuckets
	}

	progressives, err := lru.New[string, *ProgressiveLimiter](opts.MaxBuckets)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		rules:        make(map[string]*models.RateLimitRule),
		progressives: progressives,
		analytics:    gocache.New(constants.AnalyticsRetention, 10*time.Minute),
		logger:       log.WithComponent("ratelimit"),
		now:          time.Now,
	}

	if opts.RedisClient != nil {
		m.store = newRedisStore(opts.RedisClient)
	} else {
		memStore, err := newMemoryStore(opts.MaxBuckets)
		if err != nil {
			return nil, err
		}
		m.store = memStore
	}

	return m, nil
}

var _ service.RateLimitService = (*Manager)(nil)

// setClock injects a clock into the manager and its in-memory store. Tests
// only; the progressive limiters created afterwards inherit it.
func (m *Manager) setClock(now func() time.Time) {
	m.now = now
	if memStore, ok := m.store.(*memoryStore); ok {
		memStore.now = now
	}
}

// ================================================================================
// Rule Registry
// ================================================================================

// AddRule registers a rule, replacing any same-named rule. Existing derived
// state survives a replacement; it is purged only by RemoveRule.
func (m *Manager) AddRule(rule *models.RateLimitRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.rules[rule.Name] = rule
	m.mu.Unlock()

	m.logger.Info(context.Background(), "rate limit rule registered",
		logger.String("rule", rule.Name),
		logger.String("scope", string(rule.Scope)),
		logger.Float64("tokens_per_second", rule.TokensPerSecond),
		logger.Float64("max_tokens", rule.MaxTokens),
		logger.Bool("progressive", rule.Progressive),
	)
	return nil
}

// UpdateRule mutates a registered rule in place. Capacity changes clamp
// bucket tokens downward on the next check, never upward.
func (m *Manager) UpdateRule(rule *models.RateLimitRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.Name]; !ok {
		return errors.ErrNotFound(fmt.Sprintf("rate limit rule %q", rule.Name))
	}
	m.rules[rule.Name] = rule
	return nil
}

// RemoveRule deletes a rule and purges every bucket and progressive limiter
// keyed under it.
func (m *Manager) RemoveRule(name string) error {
	m.mu.Lock()
	if _, ok := m.rules[name]; !ok {
		m.mu.Unlock()
		return errors.ErrNotFound(fmt.Sprintf("rate limit rule %q", name))
	}
	delete(m.rules, name)
	m.mu.Unlock()

	prefix := name + ":"
	if err := m.store.RemoveByPrefix(context.Background(), prefix); err != nil {
		m.logger.Error(context.Background(), "failed to purge buckets for removed rule", err,
			logger.String("rule", name))
	}
	for _, key := range m.progressives.Keys() {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			m.progressives.Remove(key)
		}
	}

	m.logger.Info(context.Background(), "rate limit rule removed", logger.String("rule", name))
	return nil
}

// GetRule returns a registered rule.
func (m *Manager) GetRule(name string) (*models.RateLimitRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[name]
	return rule, ok
}

// ListRules returns all registered rules.
func (m *Manager) ListRules() []*models.RateLimitRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := make([]*models.RateLimitRule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, rule)
	}
	return rules
}

// ReplaceRules swaps the whole registry, used by config hot reload. Derived
// state of rules that disappear is purged as in RemoveRule.
func (m *Manager) ReplaceRules(rules []*models.RateLimitRule) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	old := m.rules
	m.rules = make(map[string]*models.RateLimitRule, len(rules))
	for _, rule := range rules {
		m.rules[rule.Name] = rule
	}
	removed := make([]string, 0)
	for name := range old {
		if _, ok := m.rules[name]; !ok {
			removed = append(removed, name)
		}
	}
	m.mu.Unlock()

	for _, name := range removed {
		prefix := name + ":"
		_ = m.store.RemoveByPrefix(context.Background(), prefix)
		for _, key := range m.progressives.Keys() {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				m.progressives.Remove(key)
			}
		}
	}
	return nil
}

// ================================================================================
// Checks
// ================================================================================

// Check consumes tokens for one rule/identifier pair and records the outcome
// for analytics. Unknown or disabled rules always allow, carrying a reason.
// A backend failure fails open: blocking all traffic on a limiter outage is
// worse than briefly not limiting it.
func (m *Manager) Check(ctx context.Context, ruleName, identifier string, tokens float64) *models.RateLimitResult {
	if tokens <= 0 {
		tokens = 1
	}

	now := m.now()
	m.totalChecks.Add(1)

	m.mu.RLock()
	rule, ok := m.rules[ruleName]
	m.mu.RUnlock()

	if !ok {
		return &models.RateLimitResult{
			Allowed:    true,
			RuleName:   ruleName,
			Identifier: identifier,
			Reason:     fmt.Sprintf("unknown rule %q", ruleName),
		}
	}
	if !rule.Enabled {
		return &models.RateLimitResult{
			Allowed:    true,
			RuleName:   ruleName,
			Identifier: identifier,
			Action:     rule.Action,
			Reason:     "rule disabled",
		}
	}

	key := ruleName + ":" + identifier
	capacity := rule.Capacity()

	rate := rule.TokensPerSecond
	var pl *ProgressiveLimiter
	if rule.Progressive {
		pl = m.progressiveFor(key, rule)
		rate = pl.CurrentRate(rule.TokensPerSecond)
	}

	outcome, err := m.store.Take(ctx, key, capacity, rate, tokens)
	if err != nil {
		m.logger.Error(ctx, "bucket store unavailable, failing open", err,
			logger.String("rule", ruleName),
			logger.String("identifier", identifier))
		return &models.RateLimitResult{
			Allowed:    true,
			RuleName:   ruleName,
			Identifier: identifier,
			Action:     rule.Action,
			Reason:     "limiter backend unavailable",
		}
	}

	if pl != nil {
		if outcome.allowed {
			pl.RecordSuccess()
		} else {
			pl.RecordViolation()
		}
		// The adjusted rate reaches the bucket on the next Take.
		rate = pl.CurrentRate(rule.TokensPerSecond)
	}

	result := &models.RateLimitResult{
		Allowed:         outcome.allowed,
		RuleName:        ruleName,
		Identifier:      identifier,
		TokensRemaining: outcome.state.tokens,
		CurrentRate:     rate,
		Action:          rule.Action,
	}

	if outcome.allowed {
		// Conservative reset estimate: time until the bucket is full
		// again, not "now".
		result.ResetTime = now.Add(durationFor(capacity-outcome.state.tokens, rate))
	} else {
		m.totalDenied.Add(1)
		needed := tokens - outcome.state.tokens
		result.RetryAfter = durationFor(needed, rate)
		result.ResetTime = now.Add(result.RetryAfter)
	}

	m.recordAnalytics(key, now, result)
	return result
}

// CheckMany evaluates every check independently. No implicit priority exists
// between scopes; the caller short-circuits on the first denial in slice
// order.
func (m *Manager) CheckMany(ctx context.Context, checks []models.RateLimitCheck) []*models.RateLimitResult {
	results := make([]*models.RateLimitResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, m.Check(ctx, check.RuleName, check.Identifier, check.Tokens))
	}
	return results
}

// ================================================================================
// Administration
// ================================================================================

// ResetBucket refills a bucket to capacity. The progressive multiplier is
// untouched; behavioral history outlives an operator reset.
func (m *Manager) ResetBucket(ctx context.Context, ruleName, identifier string) error {
	m.mu.RLock()
	_, ok := m.rules[ruleName]
	m.mu.RUnlock()
	if !ok {
		return errors.ErrNotFound(fmt.Sprintf("rate limit rule %q", ruleName))
	}
	return m.store.Reset(ctx, ruleName+":"+identifier)
}

// Status returns the administrative view of one bucket.
func (m *Manager) Status(ctx context.Context, ruleName, identifier string) (*models.RateLimitStatus, error) {
	m.mu.RLock()
	rule, ok := m.rules[ruleName]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.ErrNotFound(fmt.Sprintf("rate limit rule %q", ruleName))
	}

	key := ruleName + ":" + identifier
	capacity := rule.Capacity()

	rate := rule.TokensPerSecond
	multiplier := 1.0
	if rule.Progressive {
		if pl, ok := m.progressives.Get(key); ok {
			multiplier = pl.Multiplier()
			rate = pl.CurrentRate(rule.TokensPerSecond)
		}
	}

	state, err := m.store.Peek(ctx, key, capacity, rate)
	if err != nil {
		return nil, errors.ErrServiceUnavailable("limiter backend unavailable").WithCause(err)
	}

	return &models.RateLimitStatus{
		RuleName:         ruleName,
		Identifier:       identifier,
		TokensRemaining:  state.tokens,
		Capacity:         capacity,
		CurrentRate:      rate,
		TotalRequests:    state.totalRequests,
		RejectedRequests: state.rejectedRequests,
		Multiplier:       multiplier,
		LastRefill:       state.lastRefill,
	}, nil
}

// Analytics aggregates recorded check outcomes for an identifier over the
// trailing window.
func (m *Manager) Analytics(ruleName, identifier string, windowMinutes int) *models.RateLimitAnalytics {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}

	out := &models.RateLimitAnalytics{
		RuleName:      ruleName,
		Identifier:    identifier,
		WindowMinutes: windowMinutes,
	}

	value, ok := m.analytics.Get(ruleName + ":" + identifier)
	if !ok {
		return out
	}
	series := value.(*analyticsSeries)

	cutoff := m.now().Add(-time.Duration(windowMinutes) * time.Minute)
	for _, point := range series.pointsSince(cutoff) {
		out.TotalChecks++
		if point.Allowed {
			out.AllowedChecks++
		} else {
			out.DeniedChecks++
		}
	}
	if out.TotalChecks > 0 {
		out.SuccessRate = float64(out.AllowedChecks) / float64(out.TotalChecks)
		out.RequestsPerMinute = float64(out.TotalChecks) / float64(windowMinutes)
	}
	return out
}

// SystemStats summarizes limiter state across all rules.
func (m *Manager) SystemStats() *models.RateLimitSystemStats {
	m.mu.RLock()
	rules := len(m.rules)
	enabled := 0
	for _, rule := range m.rules {
		if rule.Enabled {
			enabled++
		}
	}
	m.mu.RUnlock()

	return &models.RateLimitSystemStats{
		Rules:              rules,
		EnabledRules:       enabled,
		ActiveBuckets:      m.store.Len(),
		ActiveProgressives: m.progressives.Len(),
		TotalChecks:        m.totalChecks.Load(),
		TotalDenied:        m.totalDenied.Load(),
	}
}

// RunCleanup evicts idle in-memory buckets every interval until ctx is done.
// The Redis store ages state out with key TTLs, so this is cheap there.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.store.Cleanup(maxIdle); removed > 0 {
				m.logger.Debug(ctx, "evicted idle buckets", logger.Int("count", removed))
			}
		}
	}
}

// ================================================================================
// Internals
// ================================================================================

func (m *Manager) progressiveFor(key string, rule *models.RateLimitRule) *ProgressiveLimiter {
	if pl, ok := m.progressives.Get(key); ok {
		return pl
	}
	pl := NewProgressiveLimiter(rule)
	pl.now = m.now
	pl.lastAdjustment = m.now()
	m.progressives.Add(key, pl)
	return pl
}

func durationFor(tokens, rate float64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	if rate <= 0 {
		return time.Duration(0)
	}
	return time.Duration(tokens / rate * float64(time.Second))
}

// analyticsSeries is the rolling per-identifier list of check outcomes,
// pruned to the retention horizon on every append.
type analyticsSeries struct {
	mu     sync.Mutex
	points []models.AnalyticsPoint
}

func (s *analyticsSeries) append(point models.AnalyticsPoint, cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = append(s.points, point)
	firstLive := 0
	for firstLive < len(s.points) && s.points[firstLive].Timestamp.Before(cutoff) {
		firstLive++
	}
	if firstLive > 0 {
		s.points = append(s.points[:0:0], s.points[firstLive:]...)
	}
}

func (s *analyticsSeries) pointsSince(cutoff time.Time) []models.AnalyticsPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AnalyticsPoint, 0, len(s.points))
	for _, point := range s.points {
		if !point.Timestamp.Before(cutoff) {
			out = append(out, point)
		}
	}
	return out
}

func (m *Manager) recordAnalytics(key string, now time.Time, result *models.RateLimitResult) {
	var series *analyticsSeries
	if value, ok := m.analytics.Get(key); ok {
		series = value.(*analyticsSeries)
	} else {
		series = &analyticsSeries{}
	}
	series.append(models.AnalyticsPoint{
		Timestamp:       now,
		Allowed:         result.Allowed,
		TokensRemaining: result.TokensRemaining,
	}, now.Add(-constants.AnalyticsRetention))
	m.analytics.SetDefault(key, series)
}
