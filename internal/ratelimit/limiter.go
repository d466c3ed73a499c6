// Package ratelimit implements fixed-window request counters keyed by client
// IP and endpoint.
//
// The window is fixed, not sliding: a counter resets entirely once its window
// ends, so a client can burst up to twice the limit across a boundary.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/models"
	"github.com/Wikid82/argus/internal/util"
)

// Tracker receives RATE_LIMIT events.
type Tracker interface {
	TrackSecurityEvent(kind models.EventKind, ip string, details models.EventDetails)
}

// Counter is the state of one fixed window.
type Counter struct {
	Count   int
	ResetAt time.Time
}

// Decision is the outcome of a single Decide call.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter owns the counter map. Keys are independent, so one mutex with short
// critical sections is enough.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*Counter
	policies []Policy
	tracker  Tracker
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithTracker sets where denials are reported.
func WithTracker(t Tracker) Option {
	return func(l *Limiter) { l.tracker = t }
}

// New builds a Limiter with the given endpoint policies.
func New(policies []Policy, opts ...Option) *Limiter {
	l := &Limiter{
		counters: make(map[string]*Counter),
		policies: sortPolicies(policies),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PolicyFor returns the most specific policy covering endpoint.
func (l *Limiter) PolicyFor(endpoint string) (Policy, bool) {
	if endpoint == "" {
		return Policy{}, false
	}
	for _, p := range l.policies {
		if p.Matches(endpoint) {
			return p, true
		}
	}
	return Policy{}, false
}

// Policies returns the configured policy table, most specific first.
func (l *Limiter) Policies() []Policy {
	return append([]Policy(nil), l.policies...)
}

// Allow records a request and reports whether it fits the budget. A matching
// endpoint policy overrides maxRequests and window, and every path under the
// policy pattern shares one counter.
func (l *Limiter) Allow(ip string, maxRequests int, window time.Duration, endpoint, userAgent string) bool {
	return l.Decide(ip, maxRequests, window, endpoint, userAgent).Allowed
}

// Decide is Allow with the counter state attached.
func (l *Limiter) Decide(ip string, maxRequests int, window time.Duration, endpoint, userAgent string) Decision {
	key := counterKey(ip, endpoint)
	if p, ok := l.PolicyFor(endpoint); ok {
		maxRequests, window = p.MaxRequests, p.Window
		key = counterKey(ip, p.Pattern)
	}
	now := l.now()

	l.mu.Lock()
	c, ok := l.counters[key]
	if !ok || !now.Before(c.ResetAt) {
		c = &Counter{Count: 1, ResetAt: now.Add(window)}
		l.counters[key] = c
		d := Decision{Allowed: true, Count: 1, Limit: maxRequests, ResetAt: c.ResetAt}
		l.mu.Unlock()
		return d
	}
	if c.Count < maxRequests {
		c.Count++
		d := Decision{Allowed: true, Count: c.Count, Limit: maxRequests, ResetAt: c.ResetAt}
		l.mu.Unlock()
		return d
	}
	d := Decision{Allowed: false, Count: c.Count, Limit: maxRequests, ResetAt: c.ResetAt, RetryAfter: c.ResetAt.Sub(now)}
	l.mu.Unlock()

	logger.Component("ratelimit").WithFields(map[string]interface{}{
		"ip":       ip,
		"endpoint": util.SanitizeForLog(endpoint),
		"count":    d.Count,
		"max":      d.Limit,
	}).Warn("rate limit exceeded")

	if l.tracker != nil {
		l.tracker.TrackSecurityEvent(models.EventRateLimit, ip, models.EventDetails{
			Endpoint:  endpoint,
			UserAgent: userAgent,
			Payload:   fmt.Sprintf("count=%d max=%d", d.Count, d.Limit),
		})
	}
	return d
}

// Counter returns a snapshot of the counter charged for (ip, endpoint).
func (l *Limiter) Counter(ip, endpoint string) (Counter, bool) {
	key := counterKey(ip, endpoint)
	if p, ok := l.PolicyFor(endpoint); ok {
		key = counterKey(ip, p.Pattern)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counters[key]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}

// Prune drops counters whose window has ended and returns how many were removed.
// Expired counters would be reset on next use anyway; pruning only bounds memory.
func (l *Limiter) Prune() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, c := range l.counters {
		if !now.Before(c.ResetAt) {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

func counterKey(ip, endpoint string) string {
	if endpoint == "" {
		return ip
	}
	return ip + "|" + endpoint
}
