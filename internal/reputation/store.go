// Package reputation tracks security events per IP and escalates repeat
// offenders to temporary blocks. Block expiry is evaluated at query time; no
// background sweep is needed for correctness.
package reputation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/metrics"
	"github.com/Wikid82/argus/internal/models"
)

// UnknownIP is the shared address for clients without forwarding headers.
// Events from it are recorded but never escalate to a block.
const UnknownIP = "unknown"

var (
	ErrEmptyIP         = errors.New("ip is required")
	ErrInvalidDuration = errors.New("block duration must be positive")
)

// Sink receives every tracked event and block change for persistence and
// alerting. Implementations must not block the caller.
type Sink interface {
	RecordEvent(ev models.SecurityEvent)
	RecordBlock(b models.BlockRecord)
	RecordUnblock(ip string)
}

// EscalationPolicy decides when repeated events turn into a block.
type EscalationPolicy struct {
	Threshold     int
	Window        time.Duration
	BlockDuration time.Duration
	Kinds         []models.EventKind
}

// DefaultEscalationPolicy blocks an IP for an hour after three injection or
// XSS events within an hour.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		Threshold:     3,
		Window:        time.Hour,
		BlockDuration: time.Hour,
		Kinds:         []models.EventKind{models.EventSQLInjection, models.EventXSS},
	}
}

const defaultHistory = 500

// Store is the in-process reputation state.
type Store struct {
	mu      sync.Mutex
	policy  EscalationPolicy
	severe  map[models.EventKind]bool
	strikes map[string][]time.Time
	blocks  map[string]*models.BlockRecord
	history []models.SecurityEvent
	histCap int

	sink Sink
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSink forwards events and blocks to sink.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithPolicy overrides the escalation policy.
func WithPolicy(p EscalationPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithHistory sets how many recent events are kept in memory.
func WithHistory(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.histCap = n
		}
	}
}

// NewStore builds an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		policy:  DefaultEscalationPolicy(),
		strikes: make(map[string][]time.Time),
		blocks:  make(map[string]*models.BlockRecord),
		histCap: defaultHistory,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	defaults := DefaultEscalationPolicy()
	if s.policy.Window <= 0 {
		s.policy.Window = defaults.Window
	}
	if s.policy.BlockDuration <= 0 {
		s.policy.BlockDuration = defaults.BlockDuration
	}
	s.severe = make(map[models.EventKind]bool, len(s.policy.Kinds))
	for _, k := range s.policy.Kinds {
		s.severe[k] = true
	}
	return s
}

// Policy returns the escalation policy in effect.
func (s *Store) Policy() EscalationPolicy {
	return s.policy
}

// TrackSecurityEvent records an event and blocks ip once it crosses the
// escalation threshold.
func (s *Store) TrackSecurityEvent(kind models.EventKind, ip string, details models.EventDetails) {
	now := s.now()
	ev := models.SecurityEvent{
		UUID:      uuid.NewString(),
		Kind:      kind,
		IP:        ip,
		Endpoint:  details.Endpoint,
		UserAgent: details.UserAgent,
		Payload:   models.TruncatePayload(details.Payload),
		CreatedAt: now,
	}
	metrics.IncSecurityEvent(string(kind))

	var block *models.BlockRecord
	s.mu.Lock()
	s.appendHistory(ev)
	if s.severe[kind] && s.policy.Threshold > 0 && ip != UnknownIP {
		strikes := append(s.liveStrikes(ip, now), now)
		if len(strikes) >= s.policy.Threshold && !s.blocks[ip].Active(now) {
			block = s.putBlock(ip, fmt.Sprintf("%d security events (%s) within %s", len(strikes), kind, s.policy.Window), now, s.policy.BlockDuration)
			delete(s.strikes, ip)
		} else {
			s.strikes[ip] = strikes
		}
	}
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.RecordEvent(ev)
	}
	if block != nil {
		metrics.IncBlock("escalation")
		logger.Component("reputation").WithFields(map[string]interface{}{
			"ip":         ip,
			"reason":     block.Reason,
			"expires_at": block.ExpiresAt,
		}).Warn("ip blocked after repeated security events")
		if s.sink != nil {
			s.sink.RecordBlock(*block)
		}
	}
}

// TemporaryIPBlock blocks ip for d starting now, replacing any existing block.
func (s *Store) TemporaryIPBlock(ip, reason string, d time.Duration) (models.BlockRecord, error) {
	if ip == "" {
		return models.BlockRecord{}, ErrEmptyIP
	}
	if d <= 0 {
		return models.BlockRecord{}, ErrInvalidDuration
	}
	now := s.now()
	s.mu.Lock()
	b := *s.putBlock(ip, reason, now, d)
	s.mu.Unlock()

	metrics.IncBlock("manual")
	logger.Component("reputation").WithFields(map[string]interface{}{
		"ip":         ip,
		"reason":     reason,
		"expires_at": b.ExpiresAt,
	}).Info("temporary ip block")
	if s.sink != nil {
		s.sink.RecordBlock(b)
	}
	return b, nil
}

// IsIPBlocked reports whether ip has an active block.
func (s *Store) IsIPBlocked(ip string) bool {
	return s.GetBlockInfo(ip) != nil
}

// GetBlockInfo returns a copy of the active block for ip, or nil.
func (s *Store) GetBlockInfo(ip string) *models.BlockRecord {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[ip]
	if !ok {
		return nil
	}
	if !b.Active(now) {
		delete(s.blocks, ip)
		return nil
	}
	cp := *b
	return &cp
}

// Unblock lifts the block on ip. It reports whether an active block existed.
func (s *Store) Unblock(ip string) bool {
	now := s.now()
	s.mu.Lock()
	b, ok := s.blocks[ip]
	delete(s.blocks, ip)
	delete(s.strikes, ip)
	s.mu.Unlock()

	active := ok && b.Active(now)
	if ok && s.sink != nil {
		s.sink.RecordUnblock(ip)
	}
	return active
}

// ActiveBlocks lists blocks in force, soonest expiry first.
func (s *Store) ActiveBlocks() []models.BlockRecord {
	now := s.now()
	s.mu.Lock()
	out := make([]models.BlockRecord, 0, len(s.blocks))
	for _, b := range s.blocks {
		if b.Active(now) {
			out = append(out, *b)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// Restore loads persisted blocks, skipping expired ones. Existing entries
// with a later expiry win.
func (s *Store) Restore(blocks []models.BlockRecord) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range blocks {
		b := blocks[i]
		if b.IP == "" || !b.Active(now) {
			continue
		}
		if cur, ok := s.blocks[b.IP]; ok && cur.ExpiresAt.After(b.ExpiresAt) {
			continue
		}
		s.blocks[b.IP] = &b
		n++
	}
	return n
}

// RecentEvents returns up to limit of the newest in-memory events, newest
// first. An empty ip matches every event.
func (s *Store) RecentEvents(ip string, limit int) []models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SecurityEvent, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if ip == "" || s.history[i].IP == ip {
			out = append(out, s.history[i])
		}
	}
	return out
}

// Strikes returns the number of severe events counted toward escalation for ip.
func (s *Store) Strikes(ip string) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.liveStrikes(ip, now))
}

// Prune drops expired blocks and strike lists older than the escalation
// window. It returns the number of removed entries.
func (s *Store) Prune() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for ip, b := range s.blocks {
		if !b.Active(now) {
			delete(s.blocks, ip)
			removed++
		}
	}
	for ip := range s.strikes {
		if len(s.liveStrikes(ip, now)) == 0 {
			delete(s.strikes, ip)
			removed++
		}
	}
	return removed
}

// liveStrikes must be called with s.mu held.
func (s *Store) liveStrikes(ip string, now time.Time) []time.Time {
	strikes, ok := s.strikes[ip]
	if !ok {
		return nil
	}
	cutoff := now.Add(-s.policy.Window)
	i := 0
	for i < len(strikes) && !strikes[i].After(cutoff) {
		i++
	}
	strikes = strikes[i:]
	s.strikes[ip] = strikes
	return strikes
}

// putBlock must be called with s.mu held.
func (s *Store) putBlock(ip, reason string, now time.Time, d time.Duration) *models.BlockRecord {
	b := &models.BlockRecord{
		UUID:      uuid.NewString(),
		IP:        ip,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: now.Add(d),
	}
	s.blocks[ip] = b
	return b
}

// appendHistory must be called with s.mu held.
func (s *Store) appendHistory(ev models.SecurityEvent) {
	if len(s.history) >= s.histCap {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}
	s.history = append(s.history, ev)
}
