package session

import (
	"errors"
	"fmt"
)

var (
	ErrTransportDisconnected = errors.New("connection to the server lost")
	ErrJoinTimeout           = errors.New("timed out waiting for the room snapshot")
	ErrAlreadyJoined         = errors.New("session already joined")
	ErrLeft                  = errors.New("session has left the room")
	ErrUnknownKeybinding     = errors.New("unknown keybinding")
)

// Error records the failed operation and its cause. Sentinels from this
// package and from protocol stay reachable through errors.Is.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
