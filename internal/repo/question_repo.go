// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// PollQuestion model.
//
// Questions are append-only per aggregation bucket: there is no update
// operation. Revising a question means soft-deleting the old row and
// creating a new one with the same aggregation index, which preserves the
// exact text ever shown to respondents.
//
// Error semantics match session_repo.go: lookups conflate absent and
// soft-deleted rows into ErrNotFound, mutations on missing rows are silent
// no-ops.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/domain"
)

// Scoring defaults applied to every new question. The product currently
// runs all polls on a fixed 1..5 scale; scores at or below the threshold
// trigger a free-text feedback request.
const (
	DefaultMinScore              = 1
	DefaultMaxScore              = 5
	DefaultTextFeedbackThreshold = 3
)

// CreateQuestion inserts a new question revision for the given account,
// poll, and aggregation bucket with the fixed default scoring bounds.
func CreateQuestion(ctx context.Context, db *gorm.DB, accountID, pollID uint, aggregationIndex int, measurementName, text string) (*domain.PollQuestion, error) {
	q := &domain.PollQuestion{
		AccountID:             accountID,
		PollID:                pollID,
		AggregationIndex:      aggregationIndex,
		MeasurementName:       measurementName,
		Text:                  text,
		MinScore:              DefaultMinScore,
		MaxScore:              DefaultMaxScore,
		TextFeedbackThreshold: DefaultTextFeedbackThreshold,
		CreatedAt:             time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(q).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("question_id", q.ID).Uint("account_id", accountID).
		Int("aggregation_index", aggregationIndex).Msg("poll question created")
	return q, nil
}

// GetQuestion fetches a question by id. Soft-deleted rows read as missing;
// the deleted case is logged for audit before being hidden.
func GetQuestion(ctx context.Context, db *gorm.DB, id uint) (*domain.PollQuestion, error) {
	var q domain.PollQuestion
	err := db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if q.DeletedAt.Valid {
		log.Warn().Uint("question_id", q.ID).Msg("poll question found but deleted")
		return nil, ErrNotFound
	}
	return &q, nil
}

// ListQuestionsByPoll returns all non-deleted questions of a poll in
// store-natural (id) order. The order carries no semantics.
func ListQuestionsByPoll(ctx context.Context, db *gorm.DB, pollID uint) ([]domain.PollQuestion, error) {
	var out []domain.PollQuestion
	err := db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// ListQuestionsByAccount returns all non-deleted questions of an account
// across all its polls. This is the resolver's input set.
func ListQuestionsByAccount(ctx context.Context, db *gorm.DB, accountID uint) ([]domain.PollQuestion, error) {
	var out []domain.PollQuestion
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// SoftDeleteQuestion marks a question deleted and bumps updated_at.
// Idempotent: re-deleting an already-deleted question is a no-op, the row
// stays deleted and no error is returned.
func SoftDeleteQuestion(ctx context.Context, db *gorm.DB, id uint) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.PollQuestion{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Uint("question_id", id).Msg("poll question deleted")
	}
	return nil
}

// QuestionsStats returns aggregate metadata for an account's live
// questions: the total number of rows and the greatest UpdatedAt among
// them. The HTTP layer uses this for conditional responses on the
// canonical question list. When the account has no questions, count is 0
// and maxUpdatedAt is nil.
func QuestionsStats(ctx context.Context, db *gorm.DB, accountID uint) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.PollQuestion{}).Where("account_id = ?", accountID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
