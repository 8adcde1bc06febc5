package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisabledAllowsEverything(t *testing.T) {
	l := NewLimiter(Config{Enabled: false})
	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow("telegram:1"))
	}
}

func TestBurstThenThrottle(t *testing.T) {
	l := NewLimiter(Config{
		Enabled:           true,
		RequestsPerMinute: 6,
		Burst:             3,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("telegram:1"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("telegram:1"), "burst exhausted")
	assert.Greater(t, l.RetryAfter("telegram:1"), time.Duration(0))
}

func TestIdentitiesAreIsolated(t *testing.T) {
	l := NewLimiter(Config{
		Enabled:           true,
		RequestsPerMinute: 6,
		Burst:             1,
	})

	assert.True(t, l.Allow("telegram:1"))
	assert.False(t, l.Allow("telegram:1"))
	assert.True(t, l.Allow("telegram:2"), "second identity has its own bucket")
}

func TestGlobalCap(t *testing.T) {
	l := NewLimiter(Config{
		Enabled:           true,
		RequestsPerMinute: 100,
		GlobalPerMinute:   2,
		Burst:             100,
	})

	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow(fmt.Sprintf("telegram:%d", i)) {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestReset(t *testing.T) {
	l := NewLimiter(Config{
		Enabled:           true,
		RequestsPerMinute: 6,
		Burst:             1,
	})

	assert.True(t, l.Allow("telegram:1"))
	assert.False(t, l.Allow("telegram:1"))

	l.Reset()
	assert.True(t, l.Allow("telegram:1"))
}
