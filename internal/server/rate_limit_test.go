package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterDisabledByDefault(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{})
	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow("203.0.113.9"))
	}
}

func TestRateLimiterNilAlwaysAllows(t *testing.T) {
	var l *RateLimiter
	assert.True(t, l.Allow("203.0.113.9"))
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{QPS: 1, Burst: 3})

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("203.0.113.9") {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestRateLimiterReplenishesOverTime(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{QPS: 100, Burst: 1})

	assert.True(t, l.Allow("203.0.113.9"))
	assert.False(t, l.Allow("203.0.113.9"))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow("203.0.113.9"))
}

func TestRateLimiterTracksIndependentKeys(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{QPS: 1, Burst: 1})

	assert.True(t, l.Allow("203.0.113.9"))
	assert.True(t, l.Allow("198.51.100.1"))
	assert.False(t, l.Allow("203.0.113.9"))
}
