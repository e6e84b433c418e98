package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/logger"
)

func newTestManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(ManagerOptions{MaxBuckets: 100}, logger.NewNoopLogger())
	require.NoError(t, err)
	m.setClock(clock.Now)
	return m
}

func basicRule() *models.RateLimitRule {
	return &models.RateLimitRule{
		Name:            "api",
		TokensPerSecond: 5,
		MaxTokens:       50,
		Enabled:         true,
	}
}

func progressiveRule() *models.RateLimitRule {
	return &models.RateLimitRule{
		Name:            "strict",
		TokensPerSecond: 10,
		MaxTokens:       10,
		Enabled:         true,
		Progressive:     true,
		PenaltyFactor:   0.5,
		RecoveryFactor:  1.2,
		MinLimit:        0.1,
		MaxLimit:        2.0,
	}
}

func TestManagerImplementsRateLimitService(t *testing.T) {
	var _ service.RateLimitService = (*Manager)(nil)
}

func TestManagerCheckBurstAndRefill(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		result := m.Check(ctx, "api", "client-1", 1)
		require.True(t, result.Allowed, "request %d within capacity", i)
	}

	denied := m.Check(ctx, "api", "client-1", 1)
	assert.False(t, denied.Allowed)
	assert.Greater(t, denied.RetryAfter, time.Duration(0))
	assert.Equal(t, clock.Now().Add(denied.RetryAfter), denied.ResetTime)

	// One second refills 5 tokens.
	clock.Advance(time.Second)
	for i := 0; i < 5; i++ {
		assert.True(t, m.Check(ctx, "api", "client-1", 1).Allowed)
	}
	assert.False(t, m.Check(ctx, "api", "client-1", 1).Allowed)
}

func TestManagerCheckUnknownRuleAllows(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)

	result := m.Check(context.Background(), "missing", "x", 1)
	assert.True(t, result.Allowed)
	assert.Contains(t, result.Reason, "unknown rule")
}

func TestManagerCheckDisabledRuleAllows(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	rule := basicRule()
	rule.Enabled = false
	require.NoError(t, m.AddRule(rule))

	result := m.Check(context.Background(), "api", "x", 1)
	assert.True(t, result.Allowed)
	assert.Equal(t, "rule disabled", result.Reason)
}

func TestManagerIdentifiersAreIsolated(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		m.Check(ctx, "api", "greedy", 1)
	}
	require.False(t, m.Check(ctx, "api", "greedy", 1).Allowed)
	assert.True(t, m.Check(ctx, "api", "other", 1).Allowed, "other identifiers keep their own bucket")
}

func TestManagerConservativeResetTime(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))

	result := m.Check(context.Background(), "api", "c", 1)
	require.True(t, result.Allowed)

	// 49 of 50 tokens remain; a full refill of the missing token takes 0.2s.
	want := clock.Now().Add(time.Duration(1.0 / 5.0 * float64(time.Second)))
	assert.Equal(t, want, result.ResetTime, "reset estimates full capacity, not now")
}

func TestManagerProgressivePenaltyTightensRate(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(progressiveRule()))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, m.Check(ctx, "strict", "abuser", 1).Allowed)
	}
	// Three denials inside the penalty window shrink the multiplier.
	for i := 0; i < 3; i++ {
		require.False(t, m.Check(ctx, "strict", "abuser", 1).Allowed)
	}

	status, err := m.Status(ctx, "strict", "abuser")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, status.Multiplier, 1e-9)
	assert.InDelta(t, 5.0, status.CurrentRate, 1e-9)
}

func TestManagerUpdateRuleAppliesOnNextCheck(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	ctx := context.Background()

	require.True(t, m.Check(ctx, "api", "c", 1).Allowed)

	tightened := basicRule()
	tightened.MaxTokens = 1
	require.NoError(t, m.UpdateRule(tightened))

	// Capacity clamps down: 49 remaining tokens collapse to 1.
	require.True(t, m.Check(ctx, "api", "c", 1).Allowed)
	assert.False(t, m.Check(ctx, "api", "c", 1).Allowed)
}

func TestManagerUpdateUnknownRuleFails(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	assert.Error(t, m.UpdateRule(basicRule()))
}

func TestManagerRemoveRulePurgesState(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	ctx := context.Background()

	m.Check(ctx, "api", "c", 1)
	require.Equal(t, 1, m.store.Len())

	require.NoError(t, m.RemoveRule("api"))
	assert.Equal(t, 0, m.store.Len())
	assert.Error(t, m.RemoveRule("api"), "double remove fails")
}

func TestManagerReplaceRulesPurgesDropped(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	require.NoError(t, m.AddRule(progressiveRule()))
	ctx := context.Background()

	m.Check(ctx, "api", "c", 1)
	m.Check(ctx, "strict", "c", 1)
	require.Equal(t, 2, m.store.Len())

	require.NoError(t, m.ReplaceRules([]*models.RateLimitRule{basicRule()}))

	assert.Equal(t, 1, m.store.Len(), "buckets of dropped rules are purged")
	_, ok := m.GetRule("strict")
	assert.False(t, ok)
}

func TestManagerResetBucket(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		m.Check(ctx, "api", "c", 1)
	}
	require.False(t, m.Check(ctx, "api", "c", 1).Allowed)

	require.NoError(t, m.ResetBucket(ctx, "api", "c"))
	assert.True(t, m.Check(ctx, "api", "c", 1).Allowed)

	assert.Error(t, m.ResetBucket(ctx, "missing", "c"))
}

func TestManagerCheckManyEvaluatesIndependently(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))

	tiny := progressiveRule()
	tiny.MaxTokens = 1
	tiny.Progressive = false
	require.NoError(t, m.AddRule(tiny))
	ctx := context.Background()

	checks := []models.RateLimitCheck{
		{RuleName: "api", Identifier: "c", Tokens: 1},
		{RuleName: "strict", Identifier: "c", Tokens: 1},
	}

	first := m.CheckMany(ctx, checks)
	require.Len(t, first, 2)
	assert.True(t, first[0].Allowed)
	assert.True(t, first[1].Allowed)

	second := m.CheckMany(ctx, checks)
	assert.True(t, second[0].Allowed, "a denial elsewhere does not block this rule")
	assert.False(t, second[1].Allowed)
}

func TestManagerAnalytics(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	rule := basicRule()
	rule.MaxTokens = 2
	require.NoError(t, m.AddRule(rule))
	ctx := context.Background()

	m.Check(ctx, "api", "c", 1)
	m.Check(ctx, "api", "c", 1)
	m.Check(ctx, "api", "c", 1) // denied

	analytics := m.Analytics("api", "c", 10)
	assert.Equal(t, 3, analytics.TotalChecks)
	assert.Equal(t, 2, analytics.AllowedChecks)
	assert.Equal(t, 1, analytics.DeniedChecks)
	assert.InDelta(t, 2.0/3.0, analytics.SuccessRate, 1e-9)

	empty := m.Analytics("api", "nobody", 10)
	assert.Zero(t, empty.TotalChecks)
}

func TestManagerSystemStats(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	disabled := progressiveRule()
	disabled.Enabled = false
	require.NoError(t, m.AddRule(disabled))
	ctx := context.Background()

	rule := basicRule()
	rule.MaxTokens = 1
	require.NoError(t, m.UpdateRule(rule))
	m.Check(ctx, "api", "c", 1)
	m.Check(ctx, "api", "c", 1) // denied

	stats := m.SystemStats()
	assert.Equal(t, 2, stats.Rules)
	assert.Equal(t, 1, stats.EnabledRules)
	assert.Equal(t, 1, stats.ActiveBuckets)
	assert.Equal(t, int64(2), stats.TotalChecks)
	assert.Equal(t, int64(1), stats.TotalDenied)
}

func TestManagerCleanupEvictsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	require.NoError(t, m.AddRule(basicRule()))
	ctx := context.Background()

	m.Check(ctx, "api", "old", 1)
	clock.Advance(time.Hour)
	m.Check(ctx, "api", "fresh", 1)

	removed := m.store.Cleanup(30 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, m.store.Len())
}

func TestManagerZeroTokensCheckConsumesOne(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, clock)
	rule := basicRule()
	rule.MaxTokens = 1
	require.NoError(t, m.AddRule(rule))
	ctx := context.Background()

	require.True(t, m.Check(ctx, "api", "c", 0).Allowed)
	assert.False(t, m.Check(ctx, "api", "c", 0).Allowed, "zero-token checks default to one token")
}
