package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/services"
)

// Flexible poll service stub; unset fields fall back to happy-path defaults.
type stubPollSvc struct {
	createAccount func(context.Context, string) (*domain.Account, error)
	createPoll    func(context.Context, uint, string) (*domain.Poll, error)
	listPolls     func(context.Context, uint) ([]domain.Poll, error)
	startRun      func(context.Context, uint, uint, uint, datatypes.JSON) (*domain.PollSession, error)
	getRun        func(context.Context, uint) (*domain.PollSession, error)
	listRuns      func(context.Context, uint) ([]domain.PollSession, error)
	deleteRun     func(context.Context, uint) error
}

func (s stubPollSvc) CreateAccount(ctx context.Context, name string) (*domain.Account, error) {
	if s.createAccount != nil {
		return s.createAccount(ctx, name)
	}
	return &domain.Account{ID: 1, Name: name}, nil
}

func (s stubPollSvc) CreatePoll(ctx context.Context, accountID uint, name string) (*domain.Poll, error) {
	if s.createPoll != nil {
		return s.createPoll(ctx, accountID, name)
	}
	return &domain.Poll{ID: 1, AccountID: accountID, Name: name}, nil
}

func (s stubPollSvc) ListPolls(ctx context.Context, accountID uint) ([]domain.Poll, error) {
	if s.listPolls != nil {
		return s.listPolls(ctx, accountID)
	}
	return []domain.Poll{}, nil
}

func (s stubPollSvc) StartRun(ctx context.Context, accountID, pollID, sampleGroupID uint, state datatypes.JSON) (*domain.PollSession, error) {
	if s.startRun != nil {
		return s.startRun(ctx, accountID, pollID, sampleGroupID, state)
	}
	return &domain.PollSession{ID: 1, AccountID: accountID, PollID: pollID, SampleGroupID: sampleGroupID, PollingState: state}, nil
}

func (s stubPollSvc) GetRun(ctx context.Context, id uint) (*domain.PollSession, error) {
	if s.getRun != nil {
		return s.getRun(ctx, id)
	}
	return &domain.PollSession{ID: id}, nil
}

func (s stubPollSvc) ListRuns(ctx context.Context, pollID uint) ([]domain.PollSession, error) {
	if s.listRuns != nil {
		return s.listRuns(ctx, pollID)
	}
	return []domain.PollSession{}, nil
}

func (s stubPollSvc) DeleteRun(ctx context.Context, id uint) error {
	if s.deleteRun != nil {
		return s.deleteRun(ctx, id)
	}
	return nil
}

func newPollRouter(svc PollService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(nil, nil, svc, nil)
	r := gin.New()
	r.POST("/accounts", h.CreateAccount)
	r.POST("/accounts/:id/polls", h.CreatePoll)
	r.GET("/accounts/:id/polls", h.ListPolls)
	r.POST("/polls/:id/runs", h.StartRun)
	r.GET("/polls/:id/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
	r.DELETE("/runs/:id", h.DeleteRun)
	return r
}

func TestCreateAccount_OK(t *testing.T) {
	r := newPollRouter(stubPollSvc{})
	w := doJSON(t, r, http.MethodPost, "/accounts", CreateAccountRequest{Name: "Acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	var a domain.Account
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Name != "Acme" {
		t.Fatalf("name = %q", a.Name)
	}
}

func TestCreateAccount_BlankName(t *testing.T) {
	r := newPollRouter(stubPollSvc{})
	for _, body := range [][]byte{[]byte(`{}`), []byte(`{"name":"   "}`)} {
		w := doJSON(t, r, http.MethodPost, "/accounts", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, w.Code)
		}
	}
}

func TestCreatePoll_AccountMissing(t *testing.T) {
	r := newPollRouter(stubPollSvc{
		createPoll: func(context.Context, uint, string) (*domain.Poll, error) {
			return nil, services.ErrAccountNotFound
		},
	})
	w := doJSON(t, r, http.MethodPost, "/accounts/9/polls", CreatePollRequest{Name: "Weekly"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListPolls_OK(t *testing.T) {
	r := newPollRouter(stubPollSvc{
		listPolls: func(_ context.Context, accountID uint) ([]domain.Poll, error) {
			return []domain.Poll{{ID: 2, AccountID: accountID}, {ID: 1, AccountID: accountID}}, nil
		},
	})
	w := doJSON(t, r, http.MethodGet, "/accounts/1/polls", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Polls []domain.Poll `json:"polls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Polls) != 2 || resp.Polls[0].ID != 2 {
		t.Fatalf("polls = %+v", resp.Polls)
	}
}

func TestStartRun_ForwardsBlob(t *testing.T) {
	var gotState datatypes.JSON
	var gotPoll uint
	r := newPollRouter(stubPollSvc{
		startRun: func(_ context.Context, accountID, pollID, sampleGroupID uint, state datatypes.JSON) (*domain.PollSession, error) {
			gotPoll, gotState = pollID, state
			return &domain.PollSession{ID: 3, AccountID: accountID, PollID: pollID, SampleGroupID: sampleGroupID, PollingState: state}, nil
		},
	})

	body := []byte(`{"account_id":1,"sample_group_id":4,"polling_state":{"phase":"kickoff"}}`)
	w := doJSON(t, r, http.MethodPost, "/polls/2/runs", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if gotPoll != 2 {
		t.Fatalf("poll id = %d", gotPoll)
	}
	var blob map[string]string
	if err := json.Unmarshal(gotState, &blob); err != nil || blob["phase"] != "kickoff" {
		t.Fatalf("blob = %s (err=%v)", gotState, err)
	}
}

func TestStartRun_MissingFields(t *testing.T) {
	r := newPollRouter(stubPollSvc{})
	w := doJSON(t, r, http.MethodPost, "/polls/2/runs", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	r := newPollRouter(stubPollSvc{
		getRun: func(context.Context, uint) (*domain.PollSession, error) {
			return nil, services.ErrPollSessionNotFound
		},
	})
	w := doJSON(t, r, http.MethodGet, "/runs/8", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListRuns_ServiceError(t *testing.T) {
	r := newPollRouter(stubPollSvc{
		listRuns: func(context.Context, uint) ([]domain.PollSession, error) {
			return nil, errors.New("query timeout")
		},
	})
	w := doJSON(t, r, http.MethodGet, "/polls/2/runs", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if e := decodeErr(t, w); e.Code != ErrCodeListFailed {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestDeleteRun_NoContent(t *testing.T) {
	r := newPollRouter(stubPollSvc{})
	w := doJSON(t, r, http.MethodDelete, "/runs/8", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}
