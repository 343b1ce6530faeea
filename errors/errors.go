package errors

import (
	stderrors "errors"
	"fmt"
)

// Categories. Every error returned by the core wraps exactly one of them so
// callers can classify with errors.Is.
var (
	ErrValidation      = fmt.Errorf("validation failed")
	ErrPersistence     = fmt.Errorf("persistence failed")
	ErrDeliveryTimeout = fmt.Errorf("delivery timeout")
	ErrTransport       = fmt.Errorf("transport failure")
)

var (
	ErrEmptyMessage         = fmt.Errorf("%w: message must carry text or an attachment", ErrValidation)
	ErrMessageTooLong       = fmt.Errorf("%w: message text is too long", ErrValidation)
	ErrUnknownRoom          = fmt.Errorf("%w: unknown room", ErrValidation)
	ErrInvalidRoomName      = fmt.Errorf("%w: invalid room name", ErrValidation)
	ErrMissingCorrelationID = fmt.Errorf("%w: correlation id is required", ErrValidation)
	ErrFileTooLarge         = fmt.Errorf("%w: file exceeds the maximum upload size", ErrValidation)
	ErrFileTypeNotAllowed   = fmt.Errorf("%w: file type is not allowed", ErrValidation)
	ErrUnknownIdentity      = fmt.Errorf("%w: identity could not be resolved", ErrValidation)
	ErrNotInRoom            = fmt.Errorf("%w: connection has not joined a room", ErrValidation)
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrSinkClosed  = fmt.Errorf("sink closed")
	ErrQueueFull   = fmt.Errorf("fan-out queue full")
	ErrEmptyWords  = fmt.Errorf("no censored words found")
)

// Wire codes carried by error and ack frames.
const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeUnavailable      = "UNAVAILABLE"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeInternal         = "INTERNAL"
)

// Code maps an error onto the code sent to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrValidation):
		return CodeInvalidArgument
	case stderrors.Is(err, ErrPersistence), stderrors.Is(err, ErrTransport):
		return CodeUnavailable
	case stderrors.Is(err, ErrDeliveryTimeout):
		return CodeDeadlineExceeded
	default:
		return CodeInternal
	}
}

func IsValidation(err error) bool {
	return stderrors.Is(err, ErrValidation)
}

func IsPersistence(err error) bool {
	return stderrors.Is(err, ErrPersistence)
}
