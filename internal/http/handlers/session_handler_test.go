package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/services"
)

// Flexible session service stub; unset fields fall back to happy-path defaults.
type stubSessionSvc struct {
	create     func(context.Context, domain.SessionType, int64, int64, int64, *domain.ChatState) (*domain.UserSession, error)
	get        func(context.Context, uint) (*domain.UserSession, error)
	getByChat  func(context.Context, int64) (*domain.UserSession, error)
	getByUser  func(context.Context, int64) (*domain.UserSession, error)
	getByTg    func(context.Context, domain.SessionType, int64) (*domain.UserSession, error)
	transition func(context.Context, uint, domain.ChatState) (*domain.UserSession, error)
	deleteByID func(context.Context, uint) error
}

func (s stubSessionSvc) Create(ctx context.Context, typ domain.SessionType, userID, chatID, tgUserID int64, initial *domain.ChatState) (*domain.UserSession, error) {
	if s.create != nil {
		return s.create(ctx, typ, userID, chatID, tgUserID, initial)
	}
	st := domain.DefaultChatState()
	if initial != nil {
		st = *initial
	}
	return &domain.UserSession{ID: 1, Type: typ, UserID: userID, ChatID: chatID, TgUserID: tgUserID, ChatState: st}, nil
}

func (s stubSessionSvc) Get(ctx context.Context, id uint) (*domain.UserSession, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.UserSession{ID: id, Type: domain.SessionTypeSupport, ChatState: domain.DefaultChatState()}, nil
}

func (s stubSessionSvc) GetByChatID(ctx context.Context, chatID int64) (*domain.UserSession, error) {
	if s.getByChat != nil {
		return s.getByChat(ctx, chatID)
	}
	return &domain.UserSession{ID: 1, ChatID: chatID, ChatState: domain.DefaultChatState()}, nil
}

func (s stubSessionSvc) GetByUserID(ctx context.Context, userID int64) (*domain.UserSession, error) {
	if s.getByUser != nil {
		return s.getByUser(ctx, userID)
	}
	return &domain.UserSession{ID: 1, UserID: userID, ChatState: domain.DefaultChatState()}, nil
}

func (s stubSessionSvc) GetByTgUserID(ctx context.Context, typ domain.SessionType, tgUserID int64) (*domain.UserSession, error) {
	if s.getByTg != nil {
		return s.getByTg(ctx, typ, tgUserID)
	}
	return &domain.UserSession{ID: 1, Type: typ, TgUserID: tgUserID, ChatState: domain.DefaultChatState()}, nil
}

func (s stubSessionSvc) Transition(ctx context.Context, id uint, next domain.ChatState) (*domain.UserSession, error) {
	if s.transition != nil {
		return s.transition(ctx, id, next)
	}
	return &domain.UserSession{ID: id, ChatState: next}, nil
}

func (s stubSessionSvc) Delete(ctx context.Context, id uint) error {
	if s.deleteByID != nil {
		return s.deleteByID(ctx, id)
	}
	return nil
}

func newSessionRouter(svc SessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(svc, nil, nil, nil)
	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.FindSession)
	r.GET("/sessions/:id", h.GetSession)
	r.PUT("/sessions/:id/state", h.TransitionSession)
	r.DELETE("/sessions/:id", h.DeleteSession)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error envelope: %v (body=%s)", err, w.Body.String())
	}
	return e
}

func TestCreateSession_OK(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{})

	w := doJSON(t, r, http.MethodPost, "/sessions", CreateSessionRequest{
		Type: "support", UserID: 5, ChatID: 42, TgUserID: 7,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	var s domain.UserSession
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.ChatID != 42 || s.ChatState.Name != domain.StateNoop {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestCreateSession_WithInitialState(t *testing.T) {
	var got *domain.ChatState
	r := newSessionRouter(stubSessionSvc{
		create: func(_ context.Context, typ domain.SessionType, u, ch, tg int64, initial *domain.ChatState) (*domain.UserSession, error) {
			got = initial
			return &domain.UserSession{ID: 9, Type: typ, ChatState: *initial}, nil
		},
	})

	body := []byte(`{"type":"polling","user_id":1,"chat_id":2,"tg_user_id":3,"state":{"name":"awaiting_name"}}`)
	w := doJSON(t, r, http.MethodPost, "/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if got == nil || got.Name != domain.StateAwaitingName {
		t.Fatalf("initial state not forwarded: %v", got)
	}
}

func TestCreateSession_BadJSON(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{})
	w := doJSON(t, r, http.MethodPost, "/sessions", []byte(`{"type":`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestCreateSession_UnknownInitialTag(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{})
	body := []byte(`{"type":"support","user_id":1,"chat_id":2,"tg_user_id":3,"state":{"name":"karaoke"}}`)
	w := doJSON(t, r, http.MethodPost, "/sessions", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if e := decodeErr(t, w); e.Code != ErrCodeInvalidState {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestCreateSession_Conflict(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{
		create: func(context.Context, domain.SessionType, int64, int64, int64, *domain.ChatState) (*domain.UserSession, error) {
			return nil, services.ErrSessionExists
		},
	})
	w := doJSON(t, r, http.MethodPost, "/sessions", CreateSessionRequest{Type: "support", UserID: 1, ChatID: 2, TgUserID: 3})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeConflict {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestCreateSession_UnknownType(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{
		create: func(context.Context, domain.SessionType, int64, int64, int64, *domain.ChatState) (*domain.UserSession, error) {
			return nil, services.ErrUnknownSessionType
		},
	})
	w := doJSON(t, r, http.MethodPost, "/sessions", CreateSessionRequest{Type: "karaoke", UserID: 1, ChatID: 2, TgUserID: 3})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetSession_NotFoundAndBadID(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{
		get: func(context.Context, uint) (*domain.UserSession, error) {
			return nil, services.ErrSessionNotFound
		},
	})

	w := doJSON(t, r, http.MethodGet, "/sessions/5", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/sessions/zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}
}

func TestGetSession_CorruptState(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{
		get: func(context.Context, uint) (*domain.UserSession, error) {
			return nil, domain.ErrCorruptChatState
		},
	})
	w := doJSON(t, r, http.MethodGet, "/sessions/5", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeDataIntegrity {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestFindSession_Branches(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{})

	for _, q := range []string{"chat_id=42", "user_id=5", "type=support&tg_user_id=7"} {
		w := doJSON(t, r, http.MethodGet, "/sessions?"+q, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("query %q status = %d, body=%s", q, w.Code, w.Body.String())
		}
	}

	// Non-numeric values
	for _, q := range []string{"chat_id=abc", "user_id=abc", "tg_user_id=abc"} {
		w := doJSON(t, r, http.MethodGet, "/sessions?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("query %q status = %d", q, w.Code)
		}
	}

	// No identity at all
	w := doJSON(t, r, http.MethodGet, "/sessions", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestTransitionSession_OK(t *testing.T) {
	var got domain.ChatState
	r := newSessionRouter(stubSessionSvc{
		transition: func(_ context.Context, id uint, next domain.ChatState) (*domain.UserSession, error) {
			got = next
			return &domain.UserSession{ID: id, ChatState: next}, nil
		},
	})

	body := []byte(`{"name":"polling_score","payload":{"poll_session_id":3,"question_id":8}}`)
	w := doJSON(t, r, http.MethodPut, "/sessions/1/state", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if got.Name != domain.StatePollingScore {
		t.Fatalf("state = %v", got)
	}
	p, okP := got.Payload.(domain.PollingScorePayload)
	if !okP || p.QuestionID != 8 {
		t.Fatalf("payload = %#v", got.Payload)
	}
}

func TestTransitionSession_EmptyBody(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{})
	w := doJSON(t, r, http.MethodPut, "/sessions/1/state", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestTransitionSession_UnknownTag(t *testing.T) {
	called := false
	r := newSessionRouter(stubSessionSvc{
		transition: func(context.Context, uint, domain.ChatState) (*domain.UserSession, error) {
			called = true
			return nil, nil
		},
	})
	w := doJSON(t, r, http.MethodPut, "/sessions/1/state", []byte(`{"name":"awaiting_carrier_pigeon"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatalf("service must not be reached for an unrecognized envelope")
	}
}

func TestTransitionSession_PayloadMismatch(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{
		transition: func(context.Context, uint, domain.ChatState) (*domain.UserSession, error) {
			return nil, domain.ErrInvalidStatePayload
		},
	})
	w := doJSON(t, r, http.MethodPut, "/sessions/1/state", []byte(`{"name":"noop"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeleteSession_NoContent(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{})
	w := doJSON(t, r, http.MethodDelete, "/sessions/3", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
}

func TestDeleteSession_ServiceError(t *testing.T) {
	r := newSessionRouter(stubSessionSvc{
		deleteByID: func(context.Context, uint) error { return errors.New("disk on fire") },
	})
	w := doJSON(t, r, http.MethodDelete, "/sessions/3", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}
