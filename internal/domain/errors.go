package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for propagation and status mapping.
type Kind int

const (
	// KindNotFound means a referenced game, user or offer does not exist.
	KindNotFound Kind = iota + 1
	// KindInvalidArgument means the caller supplied a malformed value.
	KindInvalidArgument
	// KindInvalidState means the operation is not legal for the entity's
	// current lifecycle state, e.g. deciding a terminal offer.
	KindInvalidState
	// KindConflict means a concurrent writer got there first; the caller
	// may retry with fresh state.
	KindConflict
	// KindTransient means a store or transport hiccup that is worth
	// retrying with backoff.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidState:
		return "invalid state"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Error is a classified domain failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error with a formatted message.
func E(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification of err, or 0 when err is not a
// domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a domain error to the response status the delivery layer
// should return. Validation and state errors are 4xx, everything else 5xx.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusConflict
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
