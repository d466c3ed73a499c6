package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wikid82/argus/internal/models"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrInvalidKind   = errors.New("invalid event kind")
)

// SecurityService persists security events and IP blocks.
type SecurityService struct {
	db *gorm.DB
}

// NewSecurityService returns a SecurityService using the provided DB
func NewSecurityService(db *gorm.DB) *SecurityService {
	return &SecurityService{db: db}
}

// LogEvent stores a security event record
func (s *SecurityService) LogEvent(ev *models.SecurityEvent) error {
	if ev == nil {
		return nil
	}
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, ev.Kind)
	}
	if ev.UUID == "" {
		ev.UUID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	ev.Payload = models.TruncatePayload(ev.Payload)
	return s.db.Create(ev).Error
}

// ListEvents returns recent security events, newest first. An empty ip
// lists events for every address.
func (s *SecurityService) ListEvents(ip string, limit int) ([]models.SecurityEvent, error) {
	var res []models.SecurityEvent
	q := s.db.Order("created_at desc").Order("id desc")
	if ip != "" {
		q = q.Where("ip = ?", ip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// CountEventsSince groups events created at or after since by kind.
func (s *SecurityService) CountEventsSince(since time.Time) (map[models.EventKind]int64, error) {
	var rows []struct {
		Kind  models.EventKind
		Total int64
	}
	err := s.db.Model(&models.SecurityEvent{}).
		Select("kind, count(*) as total").
		Where("created_at >= ?", since).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.EventKind]int64, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.Total
	}
	return out, nil
}

// PurgeEventsBefore deletes events older than cutoff and returns the count.
func (s *SecurityService) PurgeEventsBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.SecurityEvent{})
	return res.RowsAffected, res.Error
}

// SaveBlock stores b as the only block for its IP.
func (s *SecurityService) SaveBlock(b *models.BlockRecord) error {
	if b == nil {
		return nil
	}
	if b.UUID == "" {
		b.UUID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ip = ?", b.IP).Delete(&models.BlockRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(b).Error
	})
}

// GetBlock returns the block for ip if it is still active at now.
func (s *SecurityService) GetBlock(ip string, now time.Time) (*models.BlockRecord, error) {
	var b models.BlockRecord
	if err := s.db.Where("ip = ? AND expires_at > ?", ip, now).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListActiveBlocks returns blocks that have not expired at now, soonest
// expiry first.
func (s *SecurityService) ListActiveBlocks(now time.Time) ([]models.BlockRecord, error) {
	var res []models.BlockRecord
	if err := s.db.Where("expires_at > ?", now).Order("expires_at asc").Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteBlock removes every stored block for ip.
func (s *SecurityService) DeleteBlock(ip string) error {
	res := s.db.Where("ip = ?", ip).Delete(&models.BlockRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// PurgeExpiredBlocks deletes blocks that expired at or before now.
func (s *SecurityService) PurgeExpiredBlocks(now time.Time) (int64, error) {
	res := s.db.Where("expires_at <= ?", now).Delete(&models.BlockRecord{})
	return res.RowsAffected, res.Error
}
