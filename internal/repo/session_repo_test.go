package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teampulse/pulse-backend/internal/domain"
)

func TestCreateSession_DefaultsToIdleState(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})

	s, err := CreateSession(context.Background(), db, domain.SessionTypeSupport, 1, 42, 7, domain.ChatState{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == 0 {
		t.Fatalf("expected store-assigned id")
	}
	if s.ChatState.Name != domain.StateNoop {
		t.Fatalf("expected idle default state, got %+v", s.ChatState)
	}

	got, err := GetSession(context.Background(), db, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Type != domain.SessionTypeSupport || got.ChatID != 42 || got.TgUserID != 7 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.ChatState.Name != domain.StateNoop || got.ChatState.Payload != nil {
		t.Fatalf("expected stored idle state, got %+v", got.ChatState)
	}
}

func TestCreateSession_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := CreateSession(context.Background(), db, domain.SessionTypeSupport, 1, 1, 1, domain.DefaultChatState()); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestGetSession_Lookups(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	ctx := context.Background()

	s, err := CreateSession(ctx, db, domain.SessionTypePolling, 10, 100, 1000, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if got, err := GetSessionByChatID(ctx, db, 100); err != nil || got.ID != s.ID {
		t.Fatalf("GetSessionByChatID: got %+v err %v", got, err)
	}
	if got, err := GetSessionByUserID(ctx, db, 10); err != nil || got.ID != s.ID {
		t.Fatalf("GetSessionByUserID: got %+v err %v", got, err)
	}
	if got, err := GetSessionByTgUserID(ctx, db, domain.SessionTypePolling, 1000); err != nil || got.ID != s.ID {
		t.Fatalf("GetSessionByTgUserID: got %+v err %v", got, err)
	}

	// Same tg user under a different session kind is a different lookup key.
	if _, err := GetSessionByTgUserID(ctx, db, domain.SessionTypeSupport, 1000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other type, got %v", err)
	}
	if _, err := GetSession(ctx, db, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestUpdateSessionState_RoundTripsTagAndPayload(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	ctx := context.Background()

	s, err := CreateSession(ctx, db, domain.SessionTypePolling, 1, 2, 3, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	next := domain.ChatState{
		Name:    domain.StatePollingScore,
		Payload: domain.PollingScorePayload{PollSessionID: 5, QuestionID: 8},
	}
	if err := UpdateSessionState(ctx, db, s.ID, next); err != nil {
		t.Fatalf("UpdateSessionState: %v", err)
	}

	got, err := GetSession(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ChatState.Name != domain.StatePollingScore {
		t.Fatalf("tag not persisted: %+v", got.ChatState)
	}
	payload, ok := got.ChatState.Payload.(domain.PollingScorePayload)
	if !ok || payload.PollSessionID != 5 || payload.QuestionID != 8 {
		t.Fatalf("payload not lossless: %#v", got.ChatState.Payload)
	}
	if !got.UpdatedAt.After(s.UpdatedAt) {
		t.Fatalf("expected updated_at to be bumped: %v vs %v", got.UpdatedAt, s.UpdatedAt)
	}
}

func TestUpdateSessionState_MissingIDIsNoOp(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	if err := UpdateSessionState(context.Background(), db, 404, domain.DefaultChatState()); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestSoftDeleteSession_HidesFromAllGetters_Idempotent(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	ctx := context.Background()

	s, err := CreateSession(ctx, db, domain.SessionTypeSupport, 1, 42, 7, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := SoftDeleteSession(ctx, db, s.ID); err != nil {
		t.Fatalf("SoftDeleteSession: %v", err)
	}

	if _, err := GetSession(ctx, db, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession after delete: %v", err)
	}
	if _, err := GetSessionByChatID(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSessionByChatID after delete: %v", err)
	}
	if _, err := GetSessionByUserID(ctx, db, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSessionByUserID after delete: %v", err)
	}
	if _, err := GetSessionByTgUserID(ctx, db, domain.SessionTypeSupport, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSessionByTgUserID after delete: %v", err)
	}

	// Re-deleting is a no-op, not an error, and the row stays deleted.
	if err := SoftDeleteSession(ctx, db, s.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	var raw domain.UserSession
	if err := db.Unscoped().First(&raw, s.ID).Error; err != nil {
		t.Fatalf("unscoped load: %v", err)
	}
	if !raw.DeletedAt.Valid {
		t.Fatalf("row should remain soft-deleted")
	}
}

func TestSoftDeleteSession_MissingIDIsNoOp(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	if err := SoftDeleteSession(context.Background(), db, 12345); err != nil {
		t.Fatalf("expected no-op for missing id, got %v", err)
	}
}

func TestGetSession_CorruptStoredStateSurfaces(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	ctx := context.Background()

	s, err := CreateSession(ctx, db, domain.SessionTypeSupport, 1, 2, 3, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Simulate a row written by newer code with a tag this build does not know.
	if err := db.Model(&domain.UserSession{}).Where("id = ?", s.ID).
		Update("chat_state", `{"name":"awaiting_carrier_pigeon"}`).Error; err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, err = GetSession(ctx, db, s.ID)
	if !errors.Is(err, domain.ErrCorruptChatState) {
		t.Fatalf("expected ErrCorruptChatState, got %v", err)
	}
}

func TestCreateSession_SetsCreatedAtUTC(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	start := time.Now().UTC().Add(-time.Minute)

	s, err := CreateSession(context.Background(), db, domain.SessionTypeSupport, 1, 2, 3, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset: %v", s.CreatedAt)
	}
}

func TestGetSession_DeletedThenRecreated_ResolvesReplacement(t *testing.T) {
	db := newTestDB(t, &domain.UserSession{})
	ctx := context.Background()

	first, err := CreateSession(ctx, db, domain.SessionTypeSupport, 10, 42, 7, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("seed first: %v", err)
	}
	if err := SoftDeleteSession(ctx, db, first.ID); err != nil {
		t.Fatalf("delete first: %v", err)
	}

	// Restarting a chat means delete + create; the lookups must resolve the
	// live replacement, not the tombstone.
	second, err := CreateSession(ctx, db, domain.SessionTypeSupport, 10, 42, 7, domain.DefaultChatState())
	if err != nil {
		t.Fatalf("seed second: %v", err)
	}

	if got, err := GetSessionByChatID(ctx, db, 42); err != nil || got.ID != second.ID {
		t.Fatalf("GetSessionByChatID: got %+v err %v, want id %d", got, err, second.ID)
	}
	if got, err := GetSessionByUserID(ctx, db, 10); err != nil || got.ID != second.ID {
		t.Fatalf("GetSessionByUserID: got %+v err %v, want id %d", got, err, second.ID)
	}
	if got, err := GetSessionByTgUserID(ctx, db, domain.SessionTypeSupport, 7); err != nil || got.ID != second.ID {
		t.Fatalf("GetSessionByTgUserID: got %+v err %v, want id %d", got, err, second.ID)
	}

	// The tombstone is still only reachable by its own id semantics: gone.
	if _, err := GetSession(ctx, db, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted id lookup: err = %v, want ErrNotFound", err)
	}
}
