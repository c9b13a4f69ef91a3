// Account, poll, and poll-run HTTP handlers.
//
// This file exposes REST endpoints for the owning aggregates and poll runs:
//   - POST   /accounts             (create account)
//   - POST   /accounts/:id/polls   (create poll)
//   - GET    /accounts/:id/polls   (list polls)
//   - POST   /polls/:id/runs       (start a run)
//   - GET    /runs/:id             (fetch a run)
//   - GET    /polls/:id/runs       (list runs)
//   - DELETE /runs/:id             (soft delete a run)
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/services"
)

// PollService defines account, poll, and run operations consumed by HTTP
// handlers.
type PollService interface {
	// CreateAccount registers a new account.
	CreateAccount(ctx context.Context, name string) (*domain.Account, error)
	// CreatePoll adds a poll under an account.
	CreatePoll(ctx context.Context, accountID uint, name string) (*domain.Poll, error)
	// ListPolls returns all live polls of an account.
	ListPolls(ctx context.Context, accountID uint) ([]domain.Poll, error)
	// StartRun records a new run of a poll against a sample group.
	StartRun(ctx context.Context, accountID, pollID, sampleGroupID uint, pollingState datatypes.JSON) (*domain.PollSession, error)
	// GetRun returns a run by id.
	GetRun(ctx context.Context, id uint) (*domain.PollSession, error)
	// ListRuns returns all live runs of a poll.
	ListRuns(ctx context.Context, pollID uint) ([]domain.PollSession, error)
	// DeleteRun soft-deletes a run (idempotent).
	DeleteRun(ctx context.Context, id uint) error
}

//
// DTOs
//

// CreateAccountRequest is the JSON payload for registering an account.
type CreateAccountRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// CreatePollRequest is the JSON payload for creating a poll.
type CreatePollRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// StartRunRequest is the JSON payload for starting a poll run.
type StartRunRequest struct {
	AccountID     uint `json:"account_id" binding:"required"`
	SampleGroupID uint `json:"sample_group_id" binding:"required"`
	// PollingState is an opaque per-run blob kept for older readers.
	PollingState datatypes.JSON `json:"polling_state,omitempty"`
}

// writePollError maps service-level poll errors onto HTTP responses.
func writePollError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
	case errors.Is(err, services.ErrPollNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
	case errors.Is(err, services.ErrPollSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "poll run not found")
	case errors.Is(err, services.ErrEmptyName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name must be non-blank")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateAccount registers a new account.
func (h *Handlers) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-255 chars)")
		return
	}
	a, err := h.pollSvc.CreateAccount(c.Request.Context(), req.Name)
	if err != nil {
		writePollError(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// CreatePoll adds a poll under the account in the path.
func (h *Handlers) CreatePoll(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-255 chars)")
		return
	}
	p, err := h.pollSvc.CreatePoll(c.Request.Context(), id, req.Name)
	if err != nil {
		writePollError(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListPolls returns the live polls of an account, newest first.
func (h *Handlers) ListPolls(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	polls, err := h.pollSvc.ListPolls(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"polls": polls})
}

// StartRun records a new run of the poll in the path.
func (h *Handlers) StartRun(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	run, err := h.pollSvc.StartRun(c.Request.Context(), req.AccountID, id, req.SampleGroupID, req.PollingState)
	if err != nil {
		writePollError(c, err)
		return
	}
	ok(c, http.StatusCreated, run)
}

// GetRun fetches a poll run by id. Soft-deleted runs read as missing.
func (h *Handlers) GetRun(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	run, err := h.pollSvc.GetRun(c.Request.Context(), id)
	if err != nil {
		writePollError(c, err)
		return
	}
	ok(c, http.StatusOK, run)
}

// ListRuns returns the live runs of a poll, newest first.
func (h *Handlers) ListRuns(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	runs, err := h.pollSvc.ListRuns(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"runs": runs})
}

// DeleteRun soft-deletes a poll run. Responds 204 even when the run is
// already gone.
func (h *Handlers) DeleteRun(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	if err := h.pollSvc.DeleteRun(c.Request.Context(), id); err != nil {
		writePollError(c, err)
		return
	}
	noContent(c)
}
