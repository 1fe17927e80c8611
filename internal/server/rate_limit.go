package server

import (
	"math"
	"sync"
	"time"
)

// RateLimiter is a single-tier, per-source-IP token bucket. It is an
// optional defensive admission-control layer, not a mandated part of the
// core (SPEC_FULL.md §5 — "no per-client rate limiting is implemented in
// the core"); it is off by default and only activated when both QPS and
// burst are configured positive. Unlike the teacher's three-tier
// global/prefix/IP limiter, v1 needs only the IP tier — there is no
// clustering or upstream fan-out here to protect with a global ceiling.
type RateLimiter struct {
	rate            float64
	burst           float64
	cleanupInterval time.Duration
	maxEntries      int

	mu          sync.Mutex
	lastCleanup time.Time
	lastUpdate  map[string]time.Time
	tokens      map[string]float64
}

// RateLimiterConfig configures a RateLimiter. QPS or Burst <= 0 disables
// rate limiting entirely (Allow always returns true).
type RateLimiterConfig struct {
	QPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxEntries      int
}

// NewRateLimiter builds a limiter from cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	ci := cfg.CleanupInterval
	if ci <= 0 {
		ci = 60 * time.Second
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &RateLimiter{
		rate:            cfg.QPS,
		burst:           float64(cfg.Burst),
		cleanupInterval: ci,
		maxEntries:      maxEntries,
		lastCleanup:     time.Now(),
		lastUpdate:      map[string]time.Time{},
		tokens:          map[string]float64{},
	}
}

// Allow reports whether a request from srcIP should proceed, consuming a
// token if so. A nil receiver or a disabled limiter always allows.
func (l *RateLimiter) Allow(srcIP string) bool {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > l.cleanupInterval {
		l.cleanupLocked(now)
	}

	last, exists := l.lastUpdate[srcIP]
	if !exists && len(l.lastUpdate) >= l.maxEntries {
		l.cleanupLocked(now)
		if len(l.lastUpdate) >= l.maxEntries {
			return false
		}
		l.lastUpdate[srcIP] = now
		l.tokens[srcIP] = l.burst - 1.0
		return true
	}

	elapsed := now.Sub(last).Seconds()
	l.lastUpdate[srcIP] = now

	tokens := l.tokens[srcIP]
	if elapsed > 0 {
		tokens = math.Min(l.burst, tokens+(elapsed*l.rate))
	}

	if tokens >= 1.0 {
		l.tokens[srcIP] = tokens - 1.0
		return true
	}
	l.tokens[srcIP] = tokens
	return false
}

func (l *RateLimiter) cleanupLocked(now time.Time) {
	staleBefore := now.Add(-l.cleanupInterval)
	for k, last := range l.lastUpdate {
		if !last.After(staleBefore) {
			delete(l.lastUpdate, k)
			delete(l.tokens, k)
		}
	}
	l.lastCleanup = now
}
