// Package ratelimit throttles command traffic per identity and globally,
// so one chatty user cannot starve the CMDOP backend for everyone.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled           bool
	RequestsPerMinute int // per identity
	GlobalPerMinute   int // across all identities, 0 = no global cap
	Burst             int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerMinute: 20,
		GlobalPerMinute:   120,
		Burst:             5,
	}
}

// Limiter enforces per-identity and global request limits.
type Limiter struct {
	config Config
	global *rate.Limiter
	mu     sync.Mutex
	users  map[string]*rate.Limiter
}

// NewLimiter creates a limiter from config.
func NewLimiter(config Config) *Limiter {
	l := &Limiter{
		config: config,
		users:  make(map[string]*rate.Limiter),
	}
	if config.Enabled && config.GlobalPerMinute > 0 {
		l.global = rate.NewLimiter(perMinute(config.GlobalPerMinute), config.GlobalPerMinute)
	}
	return l
}

// Allow reports whether a request from identity may proceed now.
func (l *Limiter) Allow(identity string) bool {
	if !l.config.Enabled {
		return true
	}
	if l.global != nil && !l.global.Allow() {
		return false
	}
	return l.userLimiter(identity).Allow()
}

// RetryAfter estimates how long identity must wait before the next
// request is allowed. Used to render the throttle message.
func (l *Limiter) RetryAfter(identity string) time.Duration {
	if !l.config.Enabled {
		return 0
	}
	res := l.userLimiter(identity).Reserve()
	delay := res.Delay()
	res.Cancel()
	return delay
}

// Reset drops all per-identity state.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = make(map[string]*rate.Limiter)
}

func (l *Limiter) userLimiter(identity string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.users[identity]; ok {
		return lim
	}
	burst := l.config.Burst
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(perMinute(l.config.RequestsPerMinute), burst)
	l.users[identity] = lim
	return lim
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}
