// Session HTTP handlers.
//
// This file exposes REST endpoints for conversational session resources:
//   - POST   /sessions            (create)
//   - GET    /sessions/:id        (fetch by id)
//   - GET    /sessions            (lookup by chat_id, user_id, or type+tg_user_id)
//   - PUT    /sessions/:id/state  (state transition)
//   - DELETE /sessions/:id        (soft delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/http/middleware"
	"github.com/teampulse/pulse-backend/internal/repo"
	"github.com/teampulse/pulse-backend/internal/services"
)

// SessionService defines session lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SessionService interface {
	// Create starts a new session of the given kind, optionally with a
	// non-idle initial state.
	Create(ctx context.Context, typ domain.SessionType, userID, chatID, tgUserID int64, initial *domain.ChatState) (*domain.UserSession, error)
	// Get returns the session by id.
	Get(ctx context.Context, id uint) (*domain.UserSession, error)
	// GetByChatID returns the session bound to a Telegram chat.
	GetByChatID(ctx context.Context, chatID int64) (*domain.UserSession, error)
	// GetByUserID returns the session bound to an internal user id.
	GetByUserID(ctx context.Context, userID int64) (*domain.UserSession, error)
	// GetByTgUserID returns the session of a kind bound to a Telegram user.
	GetByTgUserID(ctx context.Context, typ domain.SessionType, tgUserID int64) (*domain.UserSession, error)
	// Transition replaces the session's chat state.
	Transition(ctx context.Context, id uint, next domain.ChatState) (*domain.UserSession, error)
	// Delete soft-deletes the session (idempotent).
	Delete(ctx context.Context, id uint) error
}

// Handlers groups HTTP endpoints for sessions, questions, polls, and auth.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	sessionSvc  SessionService
	questionSvc QuestionService
	pollSvc     PollService
	verifier    LoginVerifier

	// IdempotencyTTL bounds how long a recorded delivery can be replayed.
	// Zero falls back to 24h.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(sessionSvc SessionService, questionSvc QuestionService, pollSvc PollService, verifier LoginVerifier) *Handlers {
	return &Handlers{sessionSvc: sessionSvc, questionSvc: questionSvc, pollSvc: pollSvc, verifier: verifier}
}

//
// DTOs
//

// CreateSessionRequest is the JSON payload for creating a session.
type CreateSessionRequest struct {
	Type     string `json:"type" binding:"required"`
	UserID   int64  `json:"user_id" binding:"required"`
	ChatID   int64  `json:"chat_id" binding:"required"`
	TgUserID int64  `json:"tg_user_id" binding:"required"`
	// State optionally sets a non-idle initial state (tagged envelope).
	State json.RawMessage `json:"state,omitempty"`
}

// TransitionRequest is the JSON payload for a state transition. The body is
// the tagged state envelope itself: {"name": "...", "payload": {...}}.
type TransitionRequest = json.RawMessage

//
// Helpers
//

// pathID parses the :id path parameter as an unsigned integer.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// decodeState unmarshals a tagged state envelope, translating a corrupt or
// unknown envelope into a 422 response.
func decodeState(c *gin.Context, raw []byte) (*domain.ChatState, bool) {
	var st domain.ChatState
	if err := json.Unmarshal(raw, &st); err != nil {
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidState, "unrecognized state envelope")
		return nil, false
	}
	return &st, true
}

// writeSessionError maps service-level session errors onto HTTP responses.
func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrSessionExists):
		fail(c, http.StatusConflict, ErrCodeConflict, "an active session already exists for this identity")
	case errors.Is(err, services.ErrUnknownSessionType):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown session type")
	case errors.Is(err, domain.ErrUnknownChatState):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidState, "unknown state tag")
	case errors.Is(err, domain.ErrInvalidStatePayload):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidState, "state payload does not match tag")
	case errors.Is(err, domain.ErrCorruptChatState):
		fail(c, http.StatusInternalServerError, ErrCodeDataIntegrity, "stored session state is corrupt")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// sessionDB exposes the underlying handle when the session service is the
// concrete implementation, mirroring how the replay path reaches storage
// without widening the SessionService interface.
func (h *Handlers) sessionDB() *services.SessionService {
	svc, okSvc := h.sessionSvc.(*services.SessionService)
	if !okSvc || svc.DB == nil {
		return nil
	}
	return svc
}

// replaySession serves the previously persisted outcome of a delivery when
// the (chat, Idempotency-Key) pair was already processed. Returns true when
// the response has been written. Bot relays retry webhook deliveries, so
// without this a retried transition would run twice.
func (h *Handlers) replaySession(c *gin.Context) bool {
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return false
	}
	svc := h.sessionDB()
	if svc == nil {
		return false
	}
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, svc.DB, middleware.ChatIDFrom(c), key, time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	s, err := h.sessionSvc.Get(ctx, rec.SessionID)
	if err != nil {
		// Session gone since the original delivery; reprocess normally.
		return false
	}
	status := rec.Status
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		status = http.StatusOK
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, status, s)
	return true
}

// recordDelivery persists the delivery outcome so retries replay instead of
// re-running. Best effort: a write failure never fails the request that
// already succeeded.
func (h *Handlers) recordDelivery(c *gin.Context, sessionID uint, status int) {
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return
	}
	svc := h.sessionDB()
	if svc == nil {
		return
	}
	ttl := h.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), svc.DB, middleware.ChatIDFrom(c), key, sessionID, status, ttl)
}

//
// Handlers
//

// CreateSession creates a session for a chat/user identity and returns the
// session resource. Responds 409 when an active session already exists for
// the chat id or the (type, tg user id) pair.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	var initial *domain.ChatState
	if len(req.State) > 0 {
		st, okState := decodeState(c, req.State)
		if !okState {
			return
		}
		initial = st
	}

	if h.replaySession(c) {
		return
	}

	s, err := h.sessionSvc.Create(c.Request.Context(), domain.SessionType(req.Type), req.UserID, req.ChatID, req.TgUserID, initial)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	h.recordDelivery(c, s.ID, http.StatusCreated)
	ok(c, http.StatusCreated, s)
}

// GetSession fetches a session by id. Soft-deleted sessions read as missing.
func (h *Handlers) GetSession(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	s, err := h.sessionSvc.Get(c.Request.Context(), id)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

// FindSession looks a session up by one of three identities:
//   - ?chat_id=N
//   - ?user_id=N
//   - ?type=support&tg_user_id=N
func (h *Handlers) FindSession(c *gin.Context) {
	ctx := c.Request.Context()

	if v := c.Query("chat_id"); v != "" {
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_id must be an integer")
			return
		}
		s, err := h.sessionSvc.GetByChatID(ctx, chatID)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		ok(c, http.StatusOK, s)
		return
	}

	if v := c.Query("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be an integer")
			return
		}
		s, err := h.sessionSvc.GetByUserID(ctx, userID)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		ok(c, http.StatusOK, s)
		return
	}

	if v := c.Query("tg_user_id"); v != "" {
		tgUserID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tg_user_id must be an integer")
			return
		}
		s, err := h.sessionSvc.GetByTgUserID(ctx, domain.SessionType(c.Query("type")), tgUserID)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		ok(c, http.StatusOK, s)
		return
	}

	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "one of chat_id, user_id, or type+tg_user_id is required")
}

// TransitionSession replaces the session's state with the posted envelope.
// Invalid envelopes are rejected with 422 and never reach the store.
func (h *Handlers) TransitionSession(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}

	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "state envelope required")
		return
	}
	next, okState := decodeState(c, raw)
	if !okState {
		return
	}

	if h.replaySession(c) {
		return
	}

	s, err := h.sessionSvc.Transition(c.Request.Context(), id, *next)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	h.recordDelivery(c, s.ID, http.StatusOK)
	ok(c, http.StatusOK, s)
}

// DeleteSession soft-deletes a session. Deleting a missing or already-deleted
// session still responds 204.
func (h *Handlers) DeleteSession(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	if err := h.sessionSvc.Delete(c.Request.Context(), id); err != nil {
		writeSessionError(c, err)
		return
	}
	noContent(c)
}
