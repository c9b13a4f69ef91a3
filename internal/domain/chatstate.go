// Package domain defines the persistence models for accounts, polls,
// poll questions, user sessions, and poll sessions. This file implements
// the tagged chat-state variant carried by user sessions.
//
// A chat state is a named conversational mode plus a payload whose shape is
// determined solely by the mode's tag. States are persisted as a JSON
// envelope ({"name": "...", "payload": {...}}) in a TEXT column and decoded
// back into a closed set of typed payloads at the store boundary. A stored
// tag that is unknown to the current code, or a payload that does not match
// its tag's shape, is a data-integrity condition and decoding fails
// explicitly instead of passing raw data upward.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StateName identifies a conversational mode of a user session.
type StateName string

// The closed set of chat-state tags. Adding a tag requires a matching
// payload shape (or none) and a decode arm in decodePayload.
const (
	// StateNoop is the idle state: no conversation step is pending.
	// It is reachable from every other state and carries no payload.
	StateNoop StateName = "noop"

	// StateAwaitingName waits for the respondent to send a display name
	// during onboarding. No payload.
	StateAwaitingName StateName = "awaiting_name"

	// StatePollingScore waits for a numeric score reply to a specific
	// poll question. Payload: PollingScorePayload.
	StatePollingScore StateName = "polling_score"

	// StatePollingFeedback waits for free-text feedback after a low
	// score. Payload: PollingFeedbackPayload.
	StatePollingFeedback StateName = "polling_feedback"
)

// Chat-state error sentinels. Services and handlers match on these with
// errors.Is.
var (
	// ErrUnknownChatState is returned when a requested state tag is not a
	// member of the known tag set.
	ErrUnknownChatState = errors.New("unknown chat state")

	// ErrInvalidStatePayload is returned when a payload's shape does not
	// match what the state tag requires.
	ErrInvalidStatePayload = errors.New("invalid chat state payload")

	// ErrCorruptChatState is returned when a stored chat state cannot be
	// decoded: either its tag is unknown to the current code or its
	// payload is malformed for a known tag.
	ErrCorruptChatState = errors.New("corrupt stored chat state")
)

// StatePayload is implemented by every typed payload. For returns the tag
// the payload belongs to, which is how Validate checks tag/payload pairing.
type StatePayload interface {
	For() StateName
}

// PollingScorePayload points at the question a score reply is expected for.
type PollingScorePayload struct {
	PollSessionID uint `json:"poll_session_id"`
	QuestionID    uint `json:"question_id"`
}

// For implements StatePayload.
func (PollingScorePayload) For() StateName { return StatePollingScore }

// PollingFeedbackPayload points at the question free-text feedback is
// expected for.
type PollingFeedbackPayload struct {
	PollSessionID uint `json:"poll_session_id"`
	QuestionID    uint `json:"question_id"`
}

// For implements StatePayload.
func (PollingFeedbackPayload) For() StateName { return StatePollingFeedback }

// ChatState is the tagged variant a user session is in: a tag naming the
// conversational mode plus an optional typed payload. The zero value is not
// valid; use DefaultChatState for the idle state.
type ChatState struct {
	Name    StateName
	Payload StatePayload // nil for payload-free tags
}

// DefaultChatState returns the idle state every new session starts in.
func DefaultChatState() ChatState {
	return ChatState{Name: StateNoop}
}

// KnownState reports whether name is a member of the closed tag set.
func KnownState(name StateName) bool {
	switch name {
	case StateNoop, StateAwaitingName, StatePollingScore, StatePollingFeedback:
		return true
	}
	return false
}

// Validate checks that the tag is known and the payload structurally
// matches the tag: payload-free tags must carry nil, payload-carrying tags
// must carry their own payload type with non-zero references.
//
// Errors: ErrUnknownChatState, ErrInvalidStatePayload.
func (s ChatState) Validate() error {
	if !KnownState(s.Name) {
		return fmt.Errorf("%w: %q", ErrUnknownChatState, s.Name)
	}
	switch s.Name {
	case StateNoop, StateAwaitingName:
		if s.Payload != nil {
			return fmt.Errorf("%w: %q takes no payload", ErrInvalidStatePayload, s.Name)
		}
	default:
		if s.Payload == nil {
			return fmt.Errorf("%w: %q requires a payload", ErrInvalidStatePayload, s.Name)
		}
		if s.Payload.For() != s.Name {
			return fmt.Errorf("%w: payload belongs to %q, not %q",
				ErrInvalidStatePayload, s.Payload.For(), s.Name)
		}
		if err := validateRefs(s.Payload); err != nil {
			return err
		}
	}
	return nil
}

// validateRefs rejects payloads whose entity references are unset. A zero
// id can never point at a persisted row (ids are store-assigned serials).
func validateRefs(p StatePayload) error {
	switch v := p.(type) {
	case PollingScorePayload:
		if v.PollSessionID == 0 || v.QuestionID == 0 {
			return fmt.Errorf("%w: zero entity reference", ErrInvalidStatePayload)
		}
	case PollingFeedbackPayload:
		if v.PollSessionID == 0 || v.QuestionID == 0 {
			return fmt.Errorf("%w: zero entity reference", ErrInvalidStatePayload)
		}
	default:
		return fmt.Errorf("%w: unsupported payload type %T", ErrInvalidStatePayload, p)
	}
	return nil
}

// chatStateEnvelope is the persisted JSON shape.
type chatStateEnvelope struct {
	Name    StateName       `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the state as its persisted envelope.
func (s ChatState) MarshalJSON() ([]byte, error) {
	env := chatStateEnvelope{Name: s.Name}
	if s.Payload != nil {
		raw, err := json.Marshal(s.Payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the persisted envelope back into a typed state.
// Unknown tags and malformed payloads yield ErrCorruptChatState: a stored
// state the current code cannot interpret must surface, not no-op.
func (s *ChatState) UnmarshalJSON(data []byte) error {
	var env chatStateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptChatState, err)
	}
	if !KnownState(env.Name) {
		return fmt.Errorf("%w: unknown tag %q", ErrCorruptChatState, env.Name)
	}
	payload, err := decodePayload(env.Name, env.Payload)
	if err != nil {
		return err
	}
	s.Name = env.Name
	s.Payload = payload
	return nil
}

// decodePayload decodes raw into the payload type owned by name. For
// payload-free tags any stored payload is ignored rather than rejected, so
// old rows written before a tag dropped its payload still load.
func decodePayload(name StateName, raw json.RawMessage) (StatePayload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		switch name {
		case StateNoop, StateAwaitingName:
			return nil, nil
		}
		return nil, fmt.Errorf("%w: tag %q stored without payload", ErrCorruptChatState, name)
	}

	switch name {
	case StateNoop, StateAwaitingName:
		return nil, nil
	case StatePollingScore:
		var p PollingScorePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: payload for %q: %v", ErrCorruptChatState, name, err)
		}
		return p, nil
	case StatePollingFeedback:
		var p PollingFeedbackPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: payload for %q: %v", ErrCorruptChatState, name, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: unknown tag %q", ErrCorruptChatState, name)
}

// Value implements driver.Valuer so GORM persists the state as JSON text.
func (s ChatState) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Decoding failures propagate so a session
// row with an uninterpretable state fails the read instead of silently
// loading as idle.
func (s *ChatState) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = DefaultChatState()
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("%w: unsupported column type %T", ErrCorruptChatState, src)
	}
}

// String renders the state for logs without dumping payload contents.
func (s ChatState) String() string {
	if s.Payload == nil {
		return string(s.Name)
	}
	return fmt.Sprintf("%s(%T)", s.Name, s.Payload)
}
