// Package apperr defines the error taxonomy shared by the sync layer.
//
// Initialization paths swallow these errors and degrade; user-initiated operations
// return them to the caller, who can branch with the Is* helpers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the sync layer reacts to it.
type Kind int

const (
	// NotConfigured means no remote store is configured. Triggers local mode.
	NotConfigured Kind = iota + 1
	// Auth covers bad credentials and expired or revoked sessions.
	Auth
	// NotFound means the requested entity does not exist (e.g. a missing profile).
	NotFound
	// Transient covers network, timeout and channel failures.
	Transient
)

func (k Kind) String() string {
	switch k {
	case NotConfigured:
		return "not configured"
	case Auth:
		return "auth"
	case NotFound:
		return "not found"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a classified failure of operation Op.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotConfigured(err error) bool { return KindOf(err) == NotConfigured }
func IsAuth(err error) bool          { return KindOf(err) == Auth }
func IsNotFound(err error) bool      { return KindOf(err) == NotFound }
func IsTransient(err error) bool     { return KindOf(err) == Transient }
