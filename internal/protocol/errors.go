package protocol

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrAlreadyAuthenticated: the session tried to authenticate twice.
	ErrAlreadyAuthenticated ErrorKind = "already_authenticated"
	// ErrNotAuthenticated: a command other than authenticate arrived first.
	ErrNotAuthenticated ErrorKind = "not_authenticated"
	// ErrInvalidCommand: the client sent something undecodable.
	ErrInvalidCommand ErrorKind = "invalid_command"
	// ErrBadState: not legal in the current match or turn.
	ErrBadState ErrorKind = "bad_state"
	// ErrNotFound: a join code, game or player lookup missed.
	ErrNotFound ErrorKind = "not_found"
	// ErrBadInput: the command decoded but its values are invalid.
	ErrBadInput ErrorKind = "bad_input"
	// ErrInternal should never happen.
	ErrInternal ErrorKind = "internal_error"
)

// Error is returned by command handlers and delivered to the originating
// session as an error event.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) MessageType() string {
	return "error"
}

// AsError converts any error into a protocol error. Errors that are not
// protocol errors are reported as internal errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return NewError(ErrInternal, err.Error())
}

// KindOf returns the kind of err, or the empty kind when err is nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}
