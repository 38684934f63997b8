// Package apperr defines the error kinds surfaced by taskflow operations.
//
// Callers branch on the kind, not the message:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
//	switch apperr.KindOf(err) { ... }
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvariant
	KindBadRequest
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvariant:
		return "invariant_violation"
	case KindBadRequest:
		return "bad_request"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a classified error. Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrInvariant  = &Error{Kind: KindInvariant}
	ErrBadRequest = &Error{Kind: KindBadRequest}
	ErrConflict   = &Error{Kind: KindConflict}
)

// NotFound reports a missing resource, e.g. NotFound("Task") -> "Task not found".
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Msg: resource + " not found"}
}

func Invariant(msg string) error {
	return &Error{Kind: KindInvariant, Msg: msg}
}

func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

// Conflict wraps a lock-acquisition failure. The operation had no effect and
// may be retried.
func Conflict(err error) error {
	return &Error{Kind: KindConflict, Msg: "concurrent update conflict, retry the operation", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing message for err. Internal errors are
// reduced to a generic text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Msg != "" {
			return e.Msg
		}
		return e.Kind.String()
	}
	return "internal error"
}
