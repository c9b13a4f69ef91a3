// Package services – SessionService
//
// This file implements the SessionService, which owns the conversational
// state machine layered on the session repository. It enforces the
// single-active-session discipline on creation and validates every state
// transition before anything is persisted, so an invalid request can never
// leave a session half-updated.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/repo"
)

// SessionService implements the use-cases around user sessions and their
// chat states. It is context-aware and opens its own transaction where an
// operation spans a read and a write.
type SessionService struct {
	// DB is the database handle used for all session operations.
	// The handle may be a plain *gorm.DB or a transaction-bound handle.
	DB *gorm.DB
}

// Create starts a new session of the given kind for a chat/user identity,
// optionally with a non-idle initial state (nil means idle).
//
// Semantics and validation:
//   - typ must be a known session kind; otherwise ErrUnknownSessionType.
//   - initial, when given, must be a valid state (known tag, matching
//     payload); otherwise the domain's state errors are returned.
//   - At most one active session may exist per chat id and per
//     (type, tg user id) pair. The store itself performs no uniqueness
//     check, so the service pre-checks both lookups inside the creation
//     transaction; a hit yields ErrSessionExists.
func (s *SessionService) Create(ctx context.Context, typ domain.SessionType, userID, chatID, tgUserID int64, initial *domain.ChatState) (*domain.UserSession, error) {
	if !domain.KnownSessionType(typ) {
		return nil, ErrUnknownSessionType
	}

	state := domain.DefaultChatState()
	if initial != nil {
		if err := initial.Validate(); err != nil {
			return nil, err
		}
		state = *initial
	}

	var created *domain.UserSession
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetSessionByChatID(ctx, tx, chatID); err == nil {
			return ErrSessionExists
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if _, err := repo.GetSessionByTgUserID(ctx, tx, typ, tgUserID); err == nil {
			return ErrSessionExists
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		out, err := repo.CreateSession(ctx, tx, typ, userID, chatID, tgUserID, state)
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the session by id, or ErrSessionNotFound when it is absent
// or soft-deleted.
func (s *SessionService) Get(ctx context.Context, id uint) (*domain.UserSession, error) {
	return mapSession(repo.GetSession(ctx, s.DB, id))
}

// GetByChatID returns the session bound to a Telegram chat.
func (s *SessionService) GetByChatID(ctx context.Context, chatID int64) (*domain.UserSession, error) {
	return mapSession(repo.GetSessionByChatID(ctx, s.DB, chatID))
}

// GetByUserID returns the session bound to an internal user id.
func (s *SessionService) GetByUserID(ctx context.Context, userID int64) (*domain.UserSession, error) {
	return mapSession(repo.GetSessionByUserID(ctx, s.DB, userID))
}

// GetByTgUserID returns the session of a kind bound to a Telegram user id.
func (s *SessionService) GetByTgUserID(ctx context.Context, typ domain.SessionType, tgUserID int64) (*domain.UserSession, error) {
	if !domain.KnownSessionType(typ) {
		return nil, ErrUnknownSessionType
	}
	return mapSession(repo.GetSessionByTgUserID(ctx, s.DB, typ, tgUserID))
}

// Transition moves a session into next, replacing the previous state
// wholesale. States are never merged.
//
// Validation happens strictly before persistence:
//  1. next.Name must be a member of the known tag set; otherwise
//     domain.ErrUnknownChatState and the stored state is untouched.
//  2. next's payload must structurally match the tag; otherwise
//     domain.ErrInvalidStatePayload, stored state untouched.
//
// The idle tag (noop) is the universal accepting state: it is reachable
// from anywhere and requires no payload. The machine is flat: no
// hierarchy, no timers; every transition is triggered by an inbound event.
//
// Concurrency & atomicity:
//   - The load and the write run in one transaction, so a transition
//     either fully replaces the state or fails without a partial update.
//     Two racing transitions on the same session serialize at the store;
//     the later commit wins (last-writer-wins, accepted policy).
func (s *SessionService) Transition(ctx context.Context, id uint, next domain.ChatState) (*domain.UserSession, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}

	var out *domain.UserSession
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := repo.GetSession(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := repo.UpdateSessionState(ctx, tx, sess.ID, next); err != nil {
			return err
		}
		// Re-read inside the transaction so the returned row carries the
		// bumped updated_at, not the pre-write snapshot.
		fresh, err := repo.GetSession(ctx, tx, sess.ID)
		if err != nil {
			return err
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete soft-deletes a session. Deleting a missing or already-deleted
// session is a no-op, not an error, so retried deletes stay harmless.
func (s *SessionService) Delete(ctx context.Context, id uint) error {
	return repo.SoftDeleteSession(ctx, s.DB, id)
}

// mapSession translates the repository's not-found sentinel into the
// service-level one.
func mapSession(sess *domain.UserSession, err error) (*domain.UserSession, error) {
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}
