package services

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/metrics"
	"github.com/Wikid82/argus/internal/models"
)

const (
	defaultAlertQueue  = 1024
	defaultNotifyQueue = 64
)

type alertOp int

const (
	opEvent alertOp = iota
	opBlock
	opUnblock
)

type alertJob struct {
	op    alertOp
	event models.SecurityEvent
	block models.BlockRecord
	ip    string
}

// AlertService is the asynchronous sink behind the reputation store. Events
// and blocks are queued and persisted by a single worker. Block alerts have
// their own queue and worker, so slow destinations never hold up persistence.
// When a queue is full new work is dropped so request handling never waits.
type AlertService struct {
	security *SecurityService
	notifier *NotificationService
	queue    chan alertJob
	notify   chan models.BlockRecord

	mu        sync.RWMutex
	closed    bool
	start     sync.Once
	wg        sync.WaitGroup
	notifying sync.WaitGroup

	dropped atomic.Int64
}

// NewAlertService creates an AlertService with a queue of size entries.
// notifier may be nil.
func NewAlertService(security *SecurityService, notifier *NotificationService, size int) *AlertService {
	if size <= 0 {
		size = defaultAlertQueue
	}
	return &AlertService{
		security: security,
		notifier: notifier,
		queue:    make(chan alertJob, size),
		notify:   make(chan models.BlockRecord, defaultNotifyQueue),
	}
}

// Start launches the worker. Calling it more than once is a no-op.
func (a *AlertService) Start() {
	a.start.Do(func() {
		a.wg.Add(1)
		go a.run()
		a.notifying.Add(1)
		go a.runNotify()
	})
}

// Close stops accepting work and waits for queued jobs and alerts to finish.
func (a *AlertService) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.Start()
	a.wg.Wait()
	close(a.notify)
	a.notifying.Wait()
}

// Dropped returns how many jobs and alerts were discarded because a queue was full.
func (a *AlertService) Dropped() int64 {
	return a.dropped.Load()
}

// RecordEvent queues ev for persistence.
func (a *AlertService) RecordEvent(ev models.SecurityEvent) {
	a.enqueue(alertJob{op: opEvent, event: ev, ip: ev.IP})
}

// RecordBlock queues b for persistence and alerting.
func (a *AlertService) RecordBlock(b models.BlockRecord) {
	a.enqueue(alertJob{op: opBlock, block: b, ip: b.IP})
}

// RecordUnblock queues removal of the stored block for ip.
func (a *AlertService) RecordUnblock(ip string) {
	a.enqueue(alertJob{op: opUnblock, ip: ip})
}

func (a *AlertService) enqueue(job alertJob) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.closed {
		select {
		case a.queue <- job:
			return
		default:
		}
	}
	a.dropped.Add(1)
	metrics.IncSinkDropped()
	logger.Component("alerts").WithFields(map[string]interface{}{
		"ip":     job.ip,
		"closed": a.closed,
	}).Warn("security alert queue full, dropping")
}

func (a *AlertService) run() {
	defer a.wg.Done()
	for job := range a.queue {
		a.handle(job)
	}
}

func (a *AlertService) runNotify() {
	defer a.notifying.Done()
	for b := range a.notify {
		if err := a.notifier.NotifyBlock(b); err != nil {
			logger.Component("alerts").WithError(err).WithField("ip", b.IP).Warn("block alert delivery incomplete")
		}
	}
}

// queueNotify hands b to the alert worker. Only the persistence worker calls
// it, and Close closes the channel after that worker exits.
func (a *AlertService) queueNotify(b models.BlockRecord) {
	if !a.notifier.Enabled() {
		return
	}
	select {
	case a.notify <- b:
	default:
		a.dropped.Add(1)
		metrics.IncSinkDropped()
		logger.Component("alerts").WithField("ip", b.IP).Warn("block alert queue full, dropping")
	}
}

func (a *AlertService) handle(job alertJob) {
	log := logger.Component("alerts")
	switch job.op {
	case opEvent:
		ev := job.event
		if err := a.security.LogEvent(&ev); err != nil {
			log.WithError(err).WithField("ip", job.ip).Error("failed to persist security event")
		}
	case opBlock:
		b := job.block
		if err := a.security.SaveBlock(&b); err != nil {
			log.WithError(err).WithField("ip", job.ip).Error("failed to persist ip block")
		}
		a.queueNotify(b)
	case opUnblock:
		if err := a.security.DeleteBlock(job.ip); err != nil && !errors.Is(err, ErrBlockNotFound) {
			log.WithError(err).WithField("ip", job.ip).Error("failed to remove ip block")
		}
	}
}
