// handlers/errors.go
package handlers

import (
	"fmt"
)

// Kind classifies a domain error for metrics and tests. The client only ever
// sees the message text.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInvalidState       Kind = "invalid_state"
	KindPreconditionFailed Kind = "precondition_failed"
	KindForbidden          Kind = "forbidden"
	KindInvalidArgument    Kind = "invalid_argument"
)

// Error is a request-level domain failure: reported to the requester only,
// never broadcast, never fatal.
type Error struct {
	kind    Kind
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Kind() string {
	return string(e.kind)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
	}
}
