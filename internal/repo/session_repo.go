// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// UserSession model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no transition rules, only CRUD
// persistence and query composition. Transition validation lives in
// services.SessionService.
//
// Error semantics:
//   - Lookups return ErrNotFound both when the row is absent and when it is
//     soft-deleted. Callers cannot tell the cases apart; the repository
//     logs the deleted case for audit purposes before hiding it.
//   - Mutations on a nonexistent or soft-deleted id are silent no-ops at
//     this layer. Services that need "not found" surface it by looking the
//     session up first (inside the same transaction).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/domain"
)

// CreateSession inserts a new session row with the given identity and
// initial chat state. A zero-valued state falls back to the idle default.
//
// No single-session-per-chat uniqueness check happens here; callers that
// need it pre-check via GetSessionByChatID / GetSessionByTgUserID before
// creating.
func CreateSession(ctx context.Context, db *gorm.DB, typ domain.SessionType, userID, chatID, tgUserID int64, state domain.ChatState) (*domain.UserSession, error) {
	if state.Name == "" {
		state = domain.DefaultChatState()
	}
	s := &domain.UserSession{
		Type:      typ,
		UserID:    userID,
		ChatID:    chatID,
		TgUserID:  tgUserID,
		ChatState: state,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("session_id", s.ID).Int64("chat_id", chatID).
		Str("type", string(typ)).Msg("user session created")
	return s, nil
}

// GetSession fetches a session by id. Soft-deleted rows read as missing.
func GetSession(ctx context.Context, db *gorm.DB, id uint) (*domain.UserSession, error) {
	return getSession(ctx, db, "id = ?", id)
}

// GetSessionByChatID fetches the session bound to a Telegram chat.
func GetSessionByChatID(ctx context.Context, db *gorm.DB, chatID int64) (*domain.UserSession, error) {
	return getSession(ctx, db, "chat_id = ?", chatID)
}

// GetSessionByUserID fetches the session bound to an internal user id.
func GetSessionByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.UserSession, error) {
	return getSession(ctx, db, "user_id = ?", userID)
}

// GetSessionByTgUserID fetches the session of the given kind bound to a
// Telegram user id. The type qualifier keeps console and respondent
// sessions for the same person apart.
func GetSessionByTgUserID(ctx context.Context, db *gorm.DB, typ domain.SessionType, tgUserID int64) (*domain.UserSession, error) {
	return getSession(ctx, db, "type = ? AND tg_user_id = ?", typ, tgUserID)
}

// getSession fetches the newest active row matching cond. The default
// scope excludes soft-deleted rows, so a chat that was deleted and then
// recreated resolves to the live replacement rather than the tombstone.
// Only when no active row exists does an unscoped probe run, purely to log
// the soft-deleted case; the deleted and absent cases stay
// indistinguishable to the caller.
func getSession(ctx context.Context, db *gorm.DB, cond string, args ...any) (*domain.UserSession, error) {
	var s domain.UserSession
	err := db.WithContext(ctx).Where(cond, args...).Order("id DESC").First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Audit probe: the distinction matters to the logs only.
	var probe domain.UserSession
	perr := db.WithContext(ctx).Unscoped().Where(cond, args...).Order("id DESC").First(&probe).Error
	if perr == nil && probe.DeletedAt.Valid {
		log.Warn().Uint("session_id", probe.ID).Msg("user session found but deleted")
	}
	return nil, ErrNotFound
}

// UpdateSessionState overwrites the stored chat state wholesale and bumps
// updated_at. It performs no transition validation; that is the state
// machine's job. Updating a missing or deleted session is a silent no-op.
func UpdateSessionState(ctx context.Context, db *gorm.DB, id uint, state domain.ChatState) error {
	return db.WithContext(ctx).
		Model(&domain.UserSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"chat_state": state,
			"updated_at": time.Now().UTC(),
		}).Error
}

// SoftDeleteSession marks a session deleted and bumps updated_at. The
// operation is idempotent: the scoped update skips rows that are already
// deleted, so re-deleting has no observable effect and is not an error.
func SoftDeleteSession(ctx context.Context, db *gorm.DB, id uint) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.UserSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Uint("session_id", id).Msg("user session deleted")
	}
	return nil
}
