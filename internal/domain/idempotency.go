// Package domain defines the core persistence models for the application.
// This file defines the idempotency record used to deduplicate replayed
// bot webhook deliveries.
package domain

import "time"

// Idempotency records a previously processed inbound event, keyed by
// (chat_id, key). Telegram redelivers updates on timeout; recording the
// update key per chat lets the transport layer recognize a replay instead
// of re-running a state transition.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ChatID    int64     `gorm:"not null;uniqueIndex:ux_idem_chat_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_chat_key,priority:2"`
	SessionID uint      `gorm:"not null"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
