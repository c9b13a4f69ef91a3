// Package services defines the business logic for user sessions, poll
// questions, and poll runs. This file centralizes common service-level
// error values so that they can be consistently returned by service
// methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer. State-machine errors (unknown tag, payload
// mismatch, corrupt stored state) are defined next to the ChatState type
// in the domain package and propagate from here unchanged.
package services

import "errors"

// Session-related errors.
var (
	// ErrSessionNotFound indicates that the requested session does not
	// exist or has been soft-deleted (the two are indistinguishable).
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session for a chat or
	// a (type, telegram user) pair that already has an active one.
	ErrSessionExists = errors.New("active session already exists")

	// ErrUnknownSessionType is returned when a session kind is outside
	// the known enumeration.
	ErrUnknownSessionType = errors.New("unknown session type")
)

// Question- and poll-related errors.
var (
	// ErrQuestionNotFound indicates that the requested question does not
	// exist or has been soft-deleted.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrEmptyQuestionText is returned when creating a question with
	// blank text or measurement name.
	ErrEmptyQuestionText = errors.New("question text and measurement name must not be empty")

	// ErrAccountNotFound indicates that the owning account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPollNotFound indicates that the poll does not exist or does not
	// belong to the given account.
	ErrPollNotFound = errors.New("poll not found")

	// ErrPollSessionNotFound indicates that the poll run does not exist
	// or has been soft-deleted.
	ErrPollSessionNotFound = errors.New("poll session not found")
)
