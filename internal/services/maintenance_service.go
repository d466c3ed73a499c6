package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/ratelimit"
	"github.com/Wikid82/argus/internal/reputation"
)

// DefaultMaintenanceSchedule runs housekeeping every five minutes.
const DefaultMaintenanceSchedule = "@every 5m"

// MaintenanceReport summarises one housekeeping pass.
type MaintenanceReport struct {
	Counters      int   `json:"counters"`
	Reputation    int   `json:"reputation"`
	Events        int64 `json:"events"`
	ExpiredBlocks int64 `json:"expired_blocks"`
}

// MaintenanceService bounds in-memory state and applies event retention.
// None of this is needed for correctness; expiry is always checked at
// query time.
type MaintenanceService struct {
	store     *reputation.Store
	limiter   *ratelimit.Limiter
	security  *SecurityService
	retention time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

// NewMaintenanceService wires the housekeeping targets. security may be nil
// when persistence is disabled; retention <= 0 keeps events forever.
func NewMaintenanceService(store *reputation.Store, limiter *ratelimit.Limiter, security *SecurityService, retention time.Duration) *MaintenanceService {
	cronLog := cron.PrintfLogger(logger.Component("maintenance"))
	return &MaintenanceService{
		store:     store,
		limiter:   limiter,
		security:  security,
		retention: retention,
		now:       time.Now,
		cron:      cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
	}
}

// RunOnce performs a single housekeeping pass.
func (m *MaintenanceService) RunOnce() (MaintenanceReport, error) {
	var r MaintenanceReport
	now := m.now()
	if m.limiter != nil {
		r.Counters = m.limiter.Prune()
	}
	if m.store != nil {
		r.Reputation = m.store.Prune()
	}
	if m.security != nil {
		if m.retention > 0 {
			n, err := m.security.PurgeEventsBefore(now.Add(-m.retention))
			if err != nil {
				return r, fmt.Errorf("purge events: %w", err)
			}
			r.Events = n
		}
		n, err := m.security.PurgeExpiredBlocks(now)
		if err != nil {
			return r, fmt.Errorf("purge blocks: %w", err)
		}
		r.ExpiredBlocks = n
	}
	return r, nil
}

// Start schedules RunOnce with a cron spec such as "@every 5m".
func (m *MaintenanceService) Start(spec string) error {
	if spec == "" {
		spec = DefaultMaintenanceSchedule
	}
	_, err := m.cron.AddFunc(spec, func() {
		r, err := m.RunOnce()
		log := logger.Component("maintenance")
		if err != nil {
			log.WithError(err).Error("maintenance pass failed")
			return
		}
		log.WithFields(map[string]interface{}{
			"counters":       r.Counters,
			"reputation":     r.Reputation,
			"events":         r.Events,
			"expired_blocks": r.ExpiredBlocks,
		}).Debug("maintenance pass complete")
	})
	if err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", spec, err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running pass.
func (m *MaintenanceService) Stop() {
	<-m.cron.Stop().Done()
}
