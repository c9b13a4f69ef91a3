// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Account
// and Poll owning aggregates. Both exist so that questions and poll
// sessions have real foreign keys and account-scoped queries; policy
// around them (authorization, billing) lives elsewhere.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/teampulse/pulse-backend/internal/domain"
)

// CreateAccount inserts a new account row.
func CreateAccount(ctx context.Context, db *gorm.DB, name string) (*domain.Account, error) {
	a := &domain.Account{Name: name, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount fetches an account by id, or ErrNotFound if absent or
// soft-deleted.
func GetAccount(ctx context.Context, db *gorm.DB, id uint) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreatePoll inserts a new poll row under an account.
func CreatePoll(ctx context.Context, db *gorm.DB, accountID uint, name string) (*domain.Poll, error) {
	p := &domain.Poll{AccountID: accountID, Name: name, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPoll fetches a poll by id, or ErrNotFound if absent or soft-deleted.
func GetPoll(ctx context.Context, db *gorm.DB, id uint) (*domain.Poll, error) {
	var p domain.Poll
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPollsByAccount returns all non-deleted polls of an account, newest
// first.
func ListPollsByAccount(ctx context.Context, db *gorm.DB, accountID uint) ([]domain.Poll, error) {
	var out []domain.Poll
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
