package dispatcher

import (
	"errors"
	"fmt"
)

// Kind classifies a failed dispatch.
type Kind string

const (
	KindUnauthorized  Kind = "unauthorized"
	KindNotFound      Kind = "not_found"
	KindBadParameters Kind = "bad_parameters"
	KindHandlerError  Kind = "handler_error"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("tool not found")
	ErrBadParameters = errors.New("bad parameters")
	ErrHandler       = errors.New("tool handler failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	case KindBadParameters:
		return ErrBadParameters
	case KindHandlerError:
		return ErrHandler
	default:
		return nil
	}
}

// Error is returned by Dispatch for every failed invocation.
type Error struct {
	Kind  Kind
	Phase Phase
	Tool  string
	// Field is the offending parameter for KindBadParameters.
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: tool %q failed while %s", e.Kind, e.Tool, e.Phase)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of a dispatch error, or "" if err is not one.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
