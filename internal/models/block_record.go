package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockRecord is a time-bounded denial entry for a client IP. A record is
// active on [CreatedAt, ExpiresAt).
type BlockRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	IP        string    `json:"ip" gorm:"index"`
	Reason    string    `json:"reason" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

// Active reports whether the block is still in force at now.
func (b *BlockRecord) Active(now time.Time) bool {
	return b != nil && now.Before(b.ExpiresAt)
}

// Remaining is the time left on the block at now, zero once expired.
func (b *BlockRecord) Remaining(now time.Time) time.Duration {
	if !b.Active(now) {
		return 0
	}
	return b.ExpiresAt.Sub(now)
}

// BeforeCreate fills the UUID before insert.
func (b *BlockRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if b.UUID == "" {
		b.UUID = uuid.New().String()
	}
	return
}
