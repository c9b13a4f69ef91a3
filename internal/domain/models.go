// Package domain defines the persistence models for accounts, polls,
// poll questions, user sessions, and poll sessions. These types are mapped
// with GORM and form the core data layer of the feedback product.
//
// All rows are soft-deleted: gorm.DeletedAt marks a row inactive without
// removing it, preserving history while excluding it from normal reads.
// Nothing in this layer hard-deletes.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionType enumerates the kinds of user sessions the bot keeps.
type SessionType string

const (
	// SessionTypeSupport is a console/support conversation with an
	// account operator.
	SessionTypeSupport SessionType = "support"

	// SessionTypePolling is a respondent conversation driven by an
	// active poll.
	SessionTypePolling SessionType = "polling"
)

// KnownSessionType reports whether t is a recognized session kind.
func KnownSessionType(t SessionType) bool {
	return t == SessionTypeSupport || t == SessionTypePolling
}

// Account represents a company/team that owns polls and questions.
type Account struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// Poll represents a recurring survey configured by an account.
type Poll struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	AccountID uint           `json:"account_id" gorm:"not null;index"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Account is the owning account.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Poll.
func (Poll) TableName() string { return "polls" }

// UserSession binds a Telegram chat/user identity to its current
// conversational state.
//
// At most one active (non-deleted) session should exist per chat id and per
// (type, tg_user_id) pair; the schema does not enforce this, lookup callers
// pre-check it before creating.
//
// Fields:
//   - ID: store-assigned serial primary key.
//   - Type: session kind (see SessionType).
//   - UserID: internal user id the session belongs to.
//   - ChatID / TgUserID: Telegram chat and user identifiers. TgUserID
//     provenance is the verified login payload (see internal/telegram).
//   - ChatState: tagged variant, serialized as JSON text (see chatstate.go).
//     Replaced wholesale on every transition, never merged.
//   - DeletedAt: soft-delete marker; deleted sessions read as missing.
type UserSession struct {
	ID        uint           `json:"id"         gorm:"primaryKey"`
	Type      SessionType    `json:"type"       gorm:"type:varchar(32);not null;index:idx_sessions_type_tg,priority:1"`
	UserID    int64          `json:"user_id"    gorm:"not null;index"`
	ChatID    int64          `json:"chat_id"    gorm:"not null;index"`
	TgUserID  int64          `json:"tg_user_id" gorm:"not null;index:idx_sessions_type_tg,priority:2"`
	ChatState ChatState      `json:"chat_state" gorm:"type:TEXT;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for UserSession.
func (UserSession) TableName() string { return "user_sessions" }

// PollQuestion is one revision of a survey question. Text and scoring
// bounds are immutable after creation: revising a question means
// soft-deleting the old row and creating a new one in the same aggregation
// bucket, so the exact text ever shown to respondents stays traceable.
//
// Many rows may share an AggregationIndex; among non-deleted rows exactly
// one per bucket is canonical per account (see internal/aggregate).
type PollQuestion struct {
	ID               uint   `json:"id"                gorm:"primaryKey"`
	AccountID        uint   `json:"account_id"        gorm:"not null;index"`
	PollID           uint   `json:"poll_id"           gorm:"not null;index"`
	AggregationIndex int    `json:"aggregation_index" gorm:"not null;index"`
	MeasurementName  string `json:"measurement_name"  gorm:"type:varchar(255);not null"`
	Text             string `json:"text"              gorm:"type:text;not null"`
	MinScore         int    `json:"min_score"         gorm:"not null"`
	MaxScore         int    `json:"max_score"         gorm:"not null"`

	// TextFeedbackThreshold is the score at or below which the bot asks
	// for free-text feedback.
	TextFeedbackThreshold int `json:"text_feedback_threshold" gorm:"not null"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Account and Poll are the owning aggregates.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Poll    Poll    `json:"-" gorm:"foreignKey:PollID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PollQuestion.
func (PollQuestion) TableName() string { return "poll_questions" }

// PollSession records one run of a poll against a sample group. It is a
// storage shape consumed by reporting; no conversational logic attaches to
// it here.
//
// SampleGroupID references the sample_groups table owned by the reporting
// side; it is indexed but not constrained from this schema.
type PollSession struct {
	ID            uint `json:"id"              gorm:"primaryKey"`
	AccountID     uint `json:"account_id"      gorm:"not null;index"`
	PollID        uint `json:"poll_id"         gorm:"not null;index"`
	SampleGroupID uint `json:"sample_group_id" gorm:"not null;index"`

	// PollingState is a legacy per-run JSON blob. Per-respondent state
	// now lives on UserSession.ChatState.
	// TODO: drop the column once reporting stops reading it.
	PollingState datatypes.JSON `json:"polling_state,omitempty" gorm:"type:TEXT"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Account and Poll are the owning aggregates.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Poll    Poll    `json:"-" gorm:"foreignKey:PollID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PollSession.
func (PollSession) TableName() string { return "poll_sessions" }
