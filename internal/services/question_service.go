// Package services – QuestionService
//
// This file implements the QuestionService, which governs the lifecycle of
// poll questions: creation with fixed scoring bounds, retrieval, listing,
// canonical aggregation, revision, and soft deletion. Questions are
// immutable after creation; a revision soft-deletes the old row and
// creates a new one in the same aggregation bucket so the exact wording
// shown to respondents stays traceable forever.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/aggregate"
	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/repo"
)

// QuestionService implements the use-cases around poll questions.
type QuestionService struct {
	// DB is the database handle used for all question operations.
	DB *gorm.DB
}

// Create adds a question revision to a poll.
//
// Semantics and validation:
//   - measurementName and text must be non-blank; otherwise
//     ErrEmptyQuestionText.
//   - The account must exist (ErrAccountNotFound) and the poll must exist
//     under that account (ErrPollNotFound). Both checks and the insert run
//     in one transaction.
//   - Scoring bounds and the feedback threshold are fixed defaults set by
//     the repository; there is no caller override.
func (s *QuestionService) Create(ctx context.Context, accountID, pollID uint, aggregationIndex int, measurementName, text string) (*domain.PollQuestion, error) {
	measurementName = strings.TrimSpace(measurementName)
	text = strings.TrimSpace(text)
	if measurementName == "" || text == "" {
		return nil, ErrEmptyQuestionText
	}

	var created *domain.PollQuestion
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkOwnership(ctx, tx, accountID, pollID); err != nil {
			return err
		}
		out, err := repo.CreateQuestion(ctx, tx, accountID, pollID, aggregationIndex, measurementName, text)
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

// Get returns a question by id, or ErrQuestionNotFound when it is absent
// or soft-deleted.
func (s *QuestionService) Get(ctx context.Context, id uint) (*domain.PollQuestion, error) {
	q, err := repo.GetQuestion(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// ListByPoll returns all live questions of a poll.
func (s *QuestionService) ListByPoll(ctx context.Context, pollID uint) ([]domain.PollQuestion, error) {
	return repo.ListQuestionsByPoll(ctx, s.DB, pollID)
}

// ListCanonicalByAccount returns one canonical question per aggregation
// bucket across all the account's polls: the newest live revision of each
// bucket (ties broken by highest id). This is the set scoring and
// reporting consume.
func (s *QuestionService) ListCanonicalByAccount(ctx context.Context, accountID uint) ([]domain.PollQuestion, error) {
	questions, err := repo.ListQuestionsByAccount(ctx, s.DB, accountID)
	if err != nil {
		return nil, err
	}
	return aggregate.Canonical(questions), nil
}

// Revise replaces a question with new wording in the same aggregation
// bucket: the old row is soft-deleted and a new row created atomically.
// Returns ErrQuestionNotFound when id is absent or already deleted, and
// ErrEmptyQuestionText on blank input.
func (s *QuestionService) Revise(ctx context.Context, id uint, measurementName, text string) (*domain.PollQuestion, error) {
	measurementName = strings.TrimSpace(measurementName)
	text = strings.TrimSpace(text)
	if measurementName == "" || text == "" {
		return nil, ErrEmptyQuestionText
	}

	var created *domain.PollQuestion
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := repo.GetQuestion(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrQuestionNotFound
			}
			return err
		}
		if err := repo.SoftDeleteQuestion(ctx, tx, old.ID); err != nil {
			return err
		}
		out, err := repo.CreateQuestion(ctx, tx, old.AccountID, old.PollID, old.AggregationIndex, measurementName, text)
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

// Delete soft-deletes a question. Idempotent: deleting a missing or
// already-deleted question is a no-op.
func (s *QuestionService) Delete(ctx context.Context, id uint) error {
	return repo.SoftDeleteQuestion(ctx, s.DB, id)
}

// Stats returns the live question count and latest update time for an
// account, used by the HTTP layer for conditional responses.
func (s *QuestionService) Stats(ctx context.Context, accountID uint) (int64, *string, error) {
	count, maxUpdated, err := repo.QuestionsStats(ctx, s.DB, accountID)
	if err != nil {
		return 0, nil, err
	}
	if maxUpdated == nil {
		return count, nil, nil
	}
	ts := maxUpdated.UTC().Format("20060102T150405.000000000")
	return count, &ts, nil
}

// checkOwnership verifies the account exists and the poll belongs to it.
func (s *QuestionService) checkOwnership(ctx context.Context, tx *gorm.DB, accountID, pollID uint) error {
	if _, err := repo.GetAccount(ctx, tx, accountID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	poll, err := repo.GetPoll(ctx, tx, pollID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPollNotFound
		}
		return err
	}
	if poll.AccountID != accountID {
		return ErrPollNotFound
	}
	return nil
}
