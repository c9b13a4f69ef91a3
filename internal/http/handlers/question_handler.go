// Question HTTP handlers.
//
// This file exposes REST endpoints for poll question resources:
//   - POST   /questions                  (create a revision)
//   - GET    /questions/:id              (fetch by id)
//   - GET    /polls/:id/questions        (live questions of a poll)
//   - GET    /accounts/:id/questions     (canonical set, paginated, ETag support)
//   - PUT    /questions/:id              (revise wording in place)
//   - DELETE /questions/:id              (soft delete)
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/services"
	"github.com/teampulse/pulse-backend/internal/utils"
)

// QuestionService defines poll question operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type QuestionService interface {
	// Create adds a question revision to a poll.
	Create(ctx context.Context, accountID, pollID uint, aggregationIndex int, measurementName, text string) (*domain.PollQuestion, error)
	// Get returns a question by id.
	Get(ctx context.Context, id uint) (*domain.PollQuestion, error)
	// ListByPoll returns all live questions of a poll.
	ListByPoll(ctx context.Context, pollID uint) ([]domain.PollQuestion, error)
	// ListCanonicalByAccount returns one question per aggregation bucket.
	ListCanonicalByAccount(ctx context.Context, accountID uint) ([]domain.PollQuestion, error)
	// Revise replaces a question's wording within its bucket.
	Revise(ctx context.Context, id uint, measurementName, text string) (*domain.PollQuestion, error)
	// Delete soft-deletes a question (idempotent).
	Delete(ctx context.Context, id uint) error
	// Stats returns the live count and a latest-update marker for ETags.
	Stats(ctx context.Context, accountID uint) (int64, *string, error)
}

//
// DTOs
//

// CreateQuestionRequest is the JSON payload for creating a question revision.
type CreateQuestionRequest struct {
	AccountID        uint   `json:"account_id" binding:"required"`
	PollID           uint   `json:"poll_id" binding:"required"`
	AggregationIndex int    `json:"aggregation_index"`
	MeasurementName  string `json:"measurement_name" binding:"required"`
	Text             string `json:"text" binding:"required"`
}

// ReviseQuestionRequest is the JSON payload for revising a question's wording.
type ReviseQuestionRequest struct {
	MeasurementName string `json:"measurement_name" binding:"required"`
	Text            string `json:"text" binding:"required"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListQuestionsResponse wraps a page of questions and pagination information.
type ListQuestionsResponse struct {
	Questions  []domain.PollQuestion `json:"questions"`
	Pagination Pagination            `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// writeQuestionError maps service-level question errors onto HTTP responses.
func writeQuestionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrQuestionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "question not found")
	case errors.Is(err, services.ErrAccountNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
	case errors.Is(err, services.ErrPollNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
	case errors.Is(err, services.ErrEmptyQuestionText):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "measurement name and text must be non-blank")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateQuestion creates a question revision under a poll.
func (h *Handlers) CreateQuestion(c *gin.Context) {
	var req CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	q, err := h.questionSvc.Create(c.Request.Context(), req.AccountID, req.PollID, req.AggregationIndex,
		strings.TrimSpace(req.MeasurementName), strings.TrimSpace(req.Text))
	if err != nil {
		writeQuestionError(c, err)
		return
	}
	ok(c, http.StatusCreated, q)
}

// GetQuestion fetches a question by id. Soft-deleted questions read as missing.
func (h *Handlers) GetQuestion(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	q, err := h.questionSvc.Get(c.Request.Context(), id)
	if err != nil {
		writeQuestionError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}

// ListPollQuestions returns the live questions of a poll.
func (h *Handlers) ListPollQuestions(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	list, err := h.questionSvc.ListByPoll(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"questions": list})
}

// ListCanonicalQuestions returns the canonical question set of an account,
// one per aggregation bucket, paginated. Supports weak ETag via If-None-Match
// and may return 304.
func (h *Handlers) ListCanonicalQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	id, okID := pathID(c)
	if !okID {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, marker, err := h.questionSvc.Stats(ctx, id); err == nil {
		ts := ""
		if marker != nil {
			ts = *marker
		}
		etag := fmt.Sprintf(`W/"questions:%d:%d:%s"`, id, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	canonical, err := h.questionSvc.ListCanonicalByAccount(ctx, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	total := int64(len(canonical))
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	start := (page - 1) * pageSize
	if start > len(canonical) {
		start = len(canonical)
	}
	end := start + pageSize
	if end > len(canonical) {
		end = len(canonical)
	}

	resp := ListQuestionsResponse{
		Questions: canonical[start:end],
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// ReviseQuestion replaces a question's wording, keeping its aggregation
// bucket. The previous revision is soft-deleted.
func (h *Handlers) ReviseQuestion(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	var req ReviseQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	q, err := h.questionSvc.Revise(c.Request.Context(), id, strings.TrimSpace(req.MeasurementName), strings.TrimSpace(req.Text))
	if err != nil {
		writeQuestionError(c, err)
		return
	}
	ok(c, http.StatusOK, q)
}

// DeleteQuestion soft-deletes a question. Responds 204 even when the question
// is already gone.
func (h *Handlers) DeleteQuestion(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		return
	}
	if err := h.questionSvc.Delete(c.Request.Context(), id); err != nil {
		writeQuestionError(c, err)
		return
	}
	noContent(c)
}
