// Package taskerr classifies every failure the task core reports to callers.
//
// Errors are plain values. A *Error carries a Kind so hosts can map it to a
// transport status, and errors.Is works against the kind sentinels below as
// well as against the finer validation sentinels.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindIOFailure
	KindDecodeFailure
	KindLockFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindIOFailure:
		return "io_failure"
	case KindDecodeFailure:
		return "decode_failure"
	case KindLockFailure:
		return "lock_failure"
	default:
		return "internal"
	}
}

// Kind sentinels.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("task not found")
	ErrIOFailure     = errors.New("storage i/o failure")
	ErrDecodeFailure = errors.New("stored document is unreadable")
	ErrLockFailure   = errors.New("task store lock is unusable")
	ErrInternal      = errors.New("internal error")
)

// Validation sentinels. All of them are InvalidInput.
var (
	ErrEmptyInput        = errors.New("text is empty")
	ErrTooLong           = errors.New("text is too long")
	ErrInvalidCharacters = errors.New("text contains invalid characters")
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "toggle"
	ID   string // task id, when one was involved
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Err != nil {
		if msg != "" {
			return msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return msg + ": " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e's kind so callers can write
// errors.Is(err, taskerr.ErrNotFound) without unwrapping by hand.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNotFound:
		return ErrNotFound
	case KindIOFailure:
		return ErrIOFailure
	case KindDecodeFailure:
		return ErrDecodeFailure
	case KindLockFailure:
		return ErrLockFailure
	default:
		return ErrInternal
	}
}

// New returns a classified error for op.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NotFound reports that id is absent from the collection.
func NotFound(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Err: ErrNotFound}
}

// Invalid wraps a validation failure.
func Invalid(op string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Err: err}
}

// IO wraps a storage failure.
func IO(op string, err error) *Error {
	return &Error{Kind: KindIOFailure, Op: op, Err: err}
}

// Decode wraps a failure to parse a stored document.
func Decode(op string, err error) *Error {
	return &Error{Kind: KindDecodeFailure, Op: op, Err: err}
}

// Lock reports that the store lock cannot be used for op.
func Lock(op string, cause any) *Error {
	return &Error{Kind: KindLockFailure, Op: op, Err: fmt.Errorf("%w: %v", ErrLockFailure, cause)}
}

// KindOf classifies any error. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	switch {
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrTooLong), errors.Is(err, ErrInvalidCharacters), errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrIOFailure):
		return KindIOFailure
	case errors.Is(err, ErrDecodeFailure):
		return KindDecodeFailure
	case errors.Is(err, ErrLockFailure):
		return KindLockFailure
	}
	return KindInternal
}
