// Package ratelimit provides per-key token bucket rate limiting for the MCP
// tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned by ToolLimiters.Check when a tool is over its limit.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter is a per-key token bucket. Each key starts with a full bucket of
// burst tokens. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a limiter refilling at rate tokens/sec up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// refill returns key's bucket topped up to now. Callers hold mu.
func (l *Limiter) refill(key string) *bucket {
	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// Allow takes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the tokens currently available to key.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refill(key).tokens
}

// Limit configures one tool.
type Limit struct {
	PerMinute float64
	Burst     int
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters builds one limiter per configured tool.
func NewToolLimiters(limits map[string]Limit) ToolLimiters {
	tl := make(ToolLimiters, len(limits))
	for tool, lim := range limits {
		tl[tool] = NewLimiter(lim.PerMinute/60, lim.Burst)
	}
	return tl
}

// Check returns nil if tool may run now. Tools without a limiter are never
// limited.
func (tl ToolLimiters) Check(tool string) error {
	limiter, ok := tl[tool]
	if !ok {
		return nil
	}
	if !limiter.Allow(tool) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, tool)
	}
	return nil
}
