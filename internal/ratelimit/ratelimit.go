package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds limits for the analytics summary endpoint.
type Config struct {
	Window      time.Duration `mapstructure:"window"`
	PerIP       int           `mapstructure:"per_ip"`
	PerOperator int           `mapstructure:"per_operator"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Window:      time.Minute,
		PerIP:       30,
		PerOperator: 20,
	}
}

// Limiter implements a fixed window in-memory rate limiter.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	window   time.Duration
	max      int
	now      func() time.Time
}

type counter struct {
	count     int
	expiresAt time.Time
}

// NewLimiter creates a new rate limiter with the specified window and max requests.
func NewLimiter(window time.Duration, max int) *Limiter {
	return &Limiter{
		counters: make(map[string]*counter),
		window:   window,
		max:      max,
		now:      time.Now,
	}
}

// Allow checks if a request for the given key is allowed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, exists := l.counters[key]

	if !exists || now.After(c.expiresAt) {
		l.counters[key] = &counter{
			count:     1,
			expiresAt: now.Add(l.window),
		}
		return true
	}

	if c.count >= l.max {
		return false
	}

	c.count++
	return true
}

// Remaining returns the number of remaining requests for the given key.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, exists := l.counters[key]
	if !exists || l.now().After(c.expiresAt) {
		return l.max
	}

	remaining := l.max - c.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// sweep removes expired counters.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, c := range l.counters {
		if now.After(c.expiresAt) {
			delete(l.counters, key)
		}
	}
}

// SummaryLimiter limits summary requests per client IP and per operator.
type SummaryLimiter struct {
	ip       *Limiter
	operator *Limiter
}

// NewSummaryLimiter creates a summary limiter. Zero limits fall back to defaults.
func NewSummaryLimiter(c Config) *SummaryLimiter {
	dc := DefaultConfig()
	if c.Window <= 0 {
		c.Window = dc.Window
	}
	if c.PerIP <= 0 {
		c.PerIP = dc.PerIP
	}
	if c.PerOperator <= 0 {
		c.PerOperator = dc.PerOperator
	}
	return &SummaryLimiter{
		ip:       NewLimiter(c.Window, c.PerIP),
		operator: NewLimiter(c.Window, c.PerOperator),
	}
}

// CheckSummary verifies if a summary can be requested from the given IP by the given operator.
func (s *SummaryLimiter) CheckSummary(ip, operator string) error {
	if !s.ip.Allow(ip) {
		return fmt.Errorf("too many summary requests from this IP address, please try again later")
	}
	if operator != "" && !s.operator.Allow(operator) {
		return fmt.Errorf("too many summary requests for this operator, please try again later")
	}
	return nil
}

// Cleanup periodically drops expired counters until ctx is done.
func (s *SummaryLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ip.sweep()
			s.operator.sweep()
		case <-ctx.Done():
			return
		}
	}
}
