// Package apperr defines the error kinds returned by the membership engine
// and the message log.
//
// Every core operation fails with exactly one *Error. Storage failures are
// wrapped as Internal; the cause is kept for server-side logging and is
// never shown to clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the API surface.
type Kind string

const (
	Validation       Kind = "validation"
	NotFound         Kind = "not_found"
	Unauthorized     Kind = "unauthorized"
	Forbidden        Kind = "forbidden"
	Conflict         Kind = "conflict"
	CapacityExceeded Kind = "capacity_exceeded"
	CooldownActive   Kind = "cooldown_active"
	InviteInvalid    Kind = "invite_invalid"
	Internal         Kind = "internal"
)

// Invite failure reasons carried in Error.Reason.
const (
	ReasonInvalid   = "invalid"
	ReasonExpired   = "expired"
	ReasonExhausted = "exhausted"
)

// Error is the single error type surfaced by core operations.
type Error struct {
	Kind    Kind
	Message string

	// RemainingHours is set for CooldownActive.
	RemainingHours int
	// Status is the already-resolved request status for Conflict on decisions.
	Status string
	// Reason is set for InviteInvalid (invalid | expired | exhausted).
	Reason string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, apperr.ErrForbidden) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = &Error{Kind: Validation}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrUnauthorized     = &Error{Kind: Unauthorized}
	ErrForbidden        = &Error{Kind: Forbidden}
	ErrConflict         = &Error{Kind: Conflict}
	ErrCapacityExceeded = &Error{Kind: CapacityExceeded}
	ErrCooldownActive   = &Error{Kind: CooldownActive}
	ErrInviteInvalid    = &Error{Kind: InviteInvalid}
	ErrInternal         = &Error{Kind: Internal}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) *Error { return New(Validation, format, args...) }

func Missing(what string) *Error { return New(NotFound, "%s not found", what) }

func Denied(format string, args ...any) *Error { return New(Forbidden, format, args...) }

func Full() *Error { return New(CapacityExceeded, "group is at capacity") }

// Cooldown reports a re-request attempted before the cooldown elapsed.
func Cooldown(hours int) *Error {
	return &Error{
		Kind:           CooldownActive,
		Message:        fmt.Sprintf("you can request to join again in %d hour(s)", hours),
		RemainingHours: hours,
	}
}

// Resolved reports a decision attempted on a request that is no longer pending.
func Resolved(status string) *Error {
	return &Error{
		Kind:    Conflict,
		Message: "request already " + status,
		Status:  status,
	}
}

// BadInvite reports an unusable invite token.
func BadInvite(reason string) *Error {
	msg := "invalid invite"
	switch reason {
	case ReasonExpired:
		msg = "invite has expired"
	case ReasonExhausted:
		msg = "invite has no uses left"
	}
	return &Error{Kind: InviteInvalid, Message: msg, Reason: reason}
}

// Wrap turns an unexpected failure into an Internal error.
func Wrap(err error, op string) *Error {
	return &Error{Kind: Internal, Message: op, Err: err}
}

// KindOf returns the Kind of err, or Internal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
