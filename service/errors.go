package service

import (
	"errors"
	"fmt"

	"github.com/Skryldev/pereval/db"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrConnection is returned when the store cannot be reached. It is
	// terminal for the call; nothing is retried.
	ErrConnection = errors.New("service: store unreachable")

	// ErrValidation is returned when a required top-level field is missing.
	ErrValidation = errors.New("service: missing required field")

	// ErrFormat is returned when a present field cannot be parsed
	// (add_time, coordinates).
	ErrFormat = errors.New("service: malformed field")

	// ErrNotFound is returned when no pass or user matches.
	ErrNotFound = errors.New("service: not found")

	// ErrInvalidState is returned by Update when the pass is no longer "new".
	ErrInvalidState = errors.New("service: pass is not editable")

	// ErrStore covers every other store failure (constraint violations,
	// timeouts, failed commits).
	ErrStore = errors.New("service: store error")
)

func IsConnection(err error) bool   { return errors.Is(err, ErrConnection) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsFormat(err error) bool       { return errors.Is(err, ErrFormat) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsStore(err error) bool        { return errors.Is(err, ErrStore) }

// ─────────────────────────────────────────────────────────────────────────────
// Error — the only error type the record operations return
// ─────────────────────────────────────────────────────────────────────────────

// Error is a classified failure of a record operation. Kind is one of the
// package sentinels; Field names the offending input field for validation
// and format failures; Cause keeps the underlying store or parse error.
type Error struct {
	Op    string
	Kind  error
	Field string
	Cause error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return msg
}

func (e *Error) Is(target error) bool { return e.Kind == target }
func (e *Error) Unwrap() error        { return e.Cause }

func validationError(field string) *Error {
	return &Error{Kind: ErrValidation, Field: field}
}

func formatError(field string, cause error) *Error {
	return &Error{Kind: ErrFormat, Field: field, Cause: cause}
}

// classify turns whatever an operation produced into a *Error tagged with op.
// Errors already classified keep their kind; store errors are sorted by the
// db sentinel they carry.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		if se.Op == "" {
			se.Op = op
		}
		return se
	}

	kind := ErrStore
	switch {
	case db.IsConnectionFailed(err):
		kind = ErrConnection
	case db.IsNotFound(err):
		kind = ErrNotFound
	}
	return &Error{Op: op, Kind: kind, Cause: err}
}
