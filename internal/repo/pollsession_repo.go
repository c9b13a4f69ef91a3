// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// PollSession model, which records one run of a poll against a sample
// group. Reporting consumes these rows; no conversational logic attaches
// to them here.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/domain"
)

// CreatePollSession inserts a poll-session row. pollingState carries the
// legacy per-run JSON blob and may be nil.
func CreatePollSession(ctx context.Context, db *gorm.DB, accountID, pollID, sampleGroupID uint, pollingState datatypes.JSON) (*domain.PollSession, error) {
	ps := &domain.PollSession{
		AccountID:     accountID,
		PollID:        pollID,
		SampleGroupID: sampleGroupID,
		PollingState:  pollingState,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ps).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("poll_session_id", ps.ID).Uint("poll_id", pollID).Msg("poll session created")
	return ps, nil
}

// GetPollSession fetches a poll session by id. Soft-deleted rows read as
// missing.
func GetPollSession(ctx context.Context, db *gorm.DB, id uint) (*domain.PollSession, error) {
	var ps domain.PollSession
	err := db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&ps).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ps.DeletedAt.Valid {
		log.Warn().Uint("poll_session_id", ps.ID).Msg("poll session found but deleted")
		return nil, ErrNotFound
	}
	return &ps, nil
}

// ListPollSessionsByPoll returns all non-deleted runs of a poll, newest
// first.
func ListPollSessionsByPoll(ctx context.Context, db *gorm.DB, pollID uint) ([]domain.PollSession, error) {
	var out []domain.PollSession
	err := db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// SoftDeletePollSession marks a poll session deleted and bumps updated_at.
// Idempotent, like the other soft deletes in this package.
func SoftDeletePollSession(ctx context.Context, db *gorm.DB, id uint) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.PollSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deleted_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Uint("poll_session_id", id).Msg("poll session deleted")
	}
	return nil
}
