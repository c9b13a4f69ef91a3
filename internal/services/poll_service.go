// Package services – PollService
//
// This file implements the PollService, which manages the owning
// aggregates (accounts, polls) and poll runs (poll sessions). Runs are a
// storage shape consumed by reporting: the service validates ownership and
// persists them, nothing more.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/domain"
	"github.com/teampulse/pulse-backend/internal/repo"
)

// ErrEmptyName is returned when creating an account or poll with a blank
// name.
var ErrEmptyName = errors.New("name must not be empty")

// PollService implements the use-cases around accounts, polls, and poll
// runs.
type PollService struct {
	// DB is the database handle used for all operations.
	DB *gorm.DB
}

// CreateAccount registers a new account.
func (s *PollService) CreateAccount(ctx context.Context, name string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return repo.CreateAccount(ctx, s.DB, name)
}

// CreatePoll adds a poll under an existing account.
func (s *PollService) CreatePoll(ctx context.Context, accountID uint, name string) (*domain.Poll, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var created *domain.Poll
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetAccount(ctx, tx, accountID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		out, err := repo.CreatePoll(ctx, tx, accountID, name)
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

// ListPolls returns all live polls of an account, newest first.
func (s *PollService) ListPolls(ctx context.Context, accountID uint) ([]domain.Poll, error) {
	return repo.ListPollsByAccount(ctx, s.DB, accountID)
}

// StartRun records a new run of a poll against a sample group.
// pollingState is the legacy per-run blob and may be nil.
func (s *PollService) StartRun(ctx context.Context, accountID, pollID, sampleGroupID uint, pollingState datatypes.JSON) (*domain.PollSession, error) {
	var created *domain.PollSession
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		out, err := repo.CreatePollSession(ctx, tx, accountID, pollID, sampleGroupID, pollingState)
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

// GetRun returns a poll run by id, or ErrPollSessionNotFound when it is
// absent or soft-deleted.
func (s *PollService) GetRun(ctx context.Context, id uint) (*domain.PollSession, error) {
	ps, err := repo.GetPollSession(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPollSessionNotFound
		}
		return nil, err
	}
	return ps, nil
}

// ListRuns returns all live runs of a poll, newest first.
func (s *PollService) ListRuns(ctx context.Context, pollID uint) ([]domain.PollSession, error) {
	return repo.ListPollSessionsByPoll(ctx, s.DB, pollID)
}

// DeleteRun soft-deletes a poll run. Idempotent.
func (s *PollService) DeleteRun(ctx context.Context, id uint) error {
	return repo.SoftDeletePollSession(ctx, s.DB, id)
}
