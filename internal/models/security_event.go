package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxPayloadExcerpt caps the payload text kept on a SecurityEvent.
const MaxPayloadExcerpt = 100

// EventKind classifies a detected violation.
type EventKind string

const (
	EventSQLInjection EventKind = "SQL_INJECTION"
	EventXSS          EventKind = "XSS"
	EventRateLimit    EventKind = "RATE_LIMIT"
	EventInvalidInput EventKind = "INVALID_INPUT"
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventSQLInjection, EventXSS, EventRateLimit, EventInvalidInput:
		return true
	}
	return false
}

// SecurityEvent is an append-only record of a detected violation. Events are
// consumed by the reputation store to decide escalation and persisted for audit.
type SecurityEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	Kind      EventKind `json:"kind" gorm:"index"`
	IP        string    `json:"ip" gorm:"index"`
	Endpoint  string    `json:"endpoint,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Payload   string    `json:"payload,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// BeforeCreate fills the UUID and caps the payload before insert.
func (e *SecurityEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.UUID == "" {
		e.UUID = uuid.New().String()
	}
	e.Payload = TruncatePayload(e.Payload)
	return
}

// TruncatePayload returns at most MaxPayloadExcerpt runes of s.
func TruncatePayload(s string) string {
	if utf8.RuneCountInString(s) <= MaxPayloadExcerpt {
		return s
	}
	return string([]rune(s)[:MaxPayloadExcerpt])
}

// EventDetails carries the request context attached to a tracked event.
type EventDetails struct {
	Endpoint  string
	UserAgent string
	Payload   string
}
