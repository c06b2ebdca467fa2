// Package apierror defines the error taxonomy raised by the bubble runtime
// and the handler-facing API, and adapts it to HTTP status codes the way
// the teacher's internal/domain/errors.go adapts its own domain errors.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is implemented by every error the runtime raises so that the
// HTTP adapter can translate it into a status code without a type switch
// over every concrete error.
type HTTPError interface {
	error
	StatusCode() int
}

// Kind identifies which row of the spec's error taxonomy an error belongs
// to. It is exported mainly for logging/assertions in tests.
type Kind string

const (
	KindInvalidConfig         Kind = "invalid_config"
	KindNoActiveContext       Kind = "no_active_context"
	KindBubbleNotFound        Kind = "bubble_not_found"
	KindStreamAlreadyAttached Kind = "stream_already_attached"
	KindHandlerError          Kind = "handler_error"
	KindWriteFailure          Kind = "write_failure"
	KindTimeout               Kind = "timeout"
	KindNotFound              Kind = "not_found"
)

// Error is the concrete HTTPError implementation used throughout the
// runtime. Wrap a lower-level cause with Wrap when one exists.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidConfig:
		return http.StatusBadRequest
	case KindNoActiveContext:
		return http.StatusInternalServerError
	case KindBubbleNotFound:
		return http.StatusNotFound
	case KindStreamAlreadyAttached:
		return http.StatusConflict
	case KindHandlerError:
		return http.StatusInternalServerError
	case KindWriteFailure:
		return http.StatusInternalServerError
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNotFound:
		return http.StatusOK // cancel-of-unknown-stream is success, per spec
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors. Use errors.Is(err, apierror.ErrBubbleNotFound) etc. to
// classify without depending on the message text.
var (
	ErrInvalidConfig         = &Error{Kind: KindInvalidConfig, Message: "invalid config"}
	ErrNoActiveContext       = &Error{Kind: KindNoActiveContext, Message: "no active context"}
	ErrBubbleNotFound        = &Error{Kind: KindBubbleNotFound, Message: "bubble not found"}
	ErrStreamAlreadyAttached = &Error{Kind: KindStreamAlreadyAttached, Message: "stream already attached"}
)

// NewInvalidConfig builds an InvalidConfig error with a specific message,
// e.g. naming the offending key.
func NewInvalidConfig(msg string) *Error {
	return &Error{Kind: KindInvalidConfig, Message: msg}
}

// NewBubbleNotFound builds a BubbleNotFound error naming the missing id.
func NewBubbleNotFound(id string) *Error {
	return &Error{Kind: KindBubbleNotFound, Message: fmt.Sprintf("bubble %q not found", id)}
}

// NewHandlerError wraps a handler-originated failure for the controller's
// terminal error frame.
func NewHandlerError(cause error) *Error {
	return &Error{Kind: KindHandlerError, Message: "handler failed", Cause: cause}
}

// NewTimeout builds a Timeout error naming which timer fired.
func NewTimeout(reason string) *Error {
	return &Error{Kind: KindTimeout, Message: reason}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
