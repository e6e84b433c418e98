package ratelimit

import (
	"sync"
	"time"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/pkg/constants"
)

// ProgressiveLimiter adapts the effective refill rate for one rule/identifier
// pair based on recent behavior: repeated violations shrink the rate quickly,
// sustained good behavior restores it gradually, never instantly.
type ProgressiveLimiter struct {
	mu             sync.Mutex
	violations     []time.Time // bounded FIFO, newest last
	multiplier     float64
	penaltyFactor  float64
	recoveryFactor float64
	minLimit       float64
	maxLimit       float64
	lastAdjustment time.Time

	now func() time.Time
}

// NewProgressiveLimiter creates a limiter for a progressive rule. The
// multiplier starts at 1.0 and stays within [MinLimit, MaxLimit].
func NewProgressiveLimiter(rule *models.RateLimitRule) *ProgressiveLimiter {
	pl := &ProgressiveLimiter{
		violations:     make([]time.Time, 0, constants.ViolationHistorySize),
		multiplier:     1.0,
		penaltyFactor:  rule.PenaltyFactor,
		recoveryFactor: rule.RecoveryFactor,
		minLimit:       rule.MinLimit,
		maxLimit:       rule.MaxLimit,
		now:            time.Now,
	}
	pl.lastAdjustment = pl.now()
	return pl
}

// RecordViolation appends the violation and, when the penalty window holds
// enough of them, shrinks the multiplier.
func (pl *ProgressiveLimiter) RecordViolation() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	pl.violations = append(pl.violations, now)
	if len(pl.violations) > constants.ViolationHistorySize {
		pl.violations = pl.violations[len(pl.violations)-constants.ViolationHistorySize:]
	}

	if pl.countSince(now.Add(-constants.PenaltyWindow)) >= constants.PenaltyThreshold {
		pl.multiplier *= pl.penaltyFactor
		if pl.multiplier < pl.minLimit {
			pl.multiplier = pl.minLimit
		}
		pl.lastAdjustment = now
	}
}

// RecordSuccess grows the multiplier when the recovery window is clean and
// the adjustment cooldown has passed.
func (pl *ProgressiveLimiter) RecordSuccess() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	if pl.countSince(now.Add(-constants.RecoveryWindow)) != 0 {
		return
	}
	if now.Sub(pl.lastAdjustment) <= constants.AdjustmentCooldown {
		return
	}

	pl.multiplier *= pl.recoveryFactor
	if pl.multiplier > pl.maxLimit {
		pl.multiplier = pl.maxLimit
	}
	pl.lastAdjustment = now
}

// CurrentRate applies the multiplier to the rule's base refill rate.
func (pl *ProgressiveLimiter) CurrentRate(baseRate float64) float64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return baseRate * pl.multiplier
}

// Multiplier returns the current multiplier.
func (pl *ProgressiveLimiter) Multiplier() float64 {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.multiplier
}

// countSince counts violations at or after the cutoff. Must be called with
// the mutex held.
func (pl *ProgressiveLimiter) countSince(cutoff time.Time) int {
	count := 0
	for i := len(pl.violations) - 1; i >= 0; i-- {
		if pl.violations[i].Before(cutoff) {
			break
		}
		count++
	}
	return count
}
