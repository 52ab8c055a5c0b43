// Package errors holds the error taxonomy shared by every service and the
// mapping of those errors onto gRPC status codes and user-facing text.
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrProfileIncomplete = errors.New("profile incomplete")
	ErrEventNotActive    = errors.New("event not active")
	ErrRateLimited       = errors.New("rate limited")
	ErrTransient         = errors.New("transient failure")
	ErrPaymentIncomplete = errors.New("payment not completed")
)

const genericMessage = "Something went wrong. Please try again."

// Detailed carries a user-facing message alongside its error class.
type Detailed struct {
	Kind error
	Msg  string
}

func (e *Detailed) Error() string { return e.Kind.Error() + ": " + e.Msg }
func (e *Detailed) Unwrap() error { return e.Kind }

func newDetailed(kind error, msg string) error { return &Detailed{Kind: kind, Msg: msg} }

// Validation is returned for malformed input, before any backend call.
func Validation(msg string) error { return newDetailed(ErrValidation, msg) }

func Unauthorized(msg string) error { return newDetailed(ErrUnauthorized, msg) }

func NotFound(msg string) error { return newDetailed(ErrNotFound, msg) }

func Conflict(msg string) error { return newDetailed(ErrConflict, msg) }

func InvalidTarget(msg string) error { return newDetailed(ErrInvalidTarget, msg) }

// Map converts repo/infra errors into gRPC-friendly status errors.
// Messages are always user-facing; raw backend text never leaves the process.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	return status.Error(Code(err), UserMessage(err))
}

// Code picks the gRPC code for an error class.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, ErrUnauthorized):
		return codes.PermissionDenied
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return codes.NotFound
	case errors.Is(err, ErrInvalidTarget),
		errors.Is(err, ErrProfileIncomplete),
		errors.Is(err, ErrEventNotActive),
		errors.Is(err, ErrPaymentIncomplete):
		return codes.FailedPrecondition
	case errors.Is(err, ErrConflict):
		return codes.Aborted
	case errors.Is(err, ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, ErrTransient):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// UserMessage returns the text shown to the end user for err.
func UserMessage(err error) string {
	var d *Detailed
	if errors.As(err, &d) && d.Msg != "" {
		return d.Msg
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to do that."
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return "We couldn't find what you were looking for."
	case errors.Is(err, ErrProfileIncomplete):
		return "Please complete your profile (name, age and at least one photo) first."
	case errors.Is(err, ErrEventNotActive):
		return "This event is not open for matching."
	case errors.Is(err, ErrInvalidTarget):
		return "This guest is no longer available."
	case errors.Is(err, ErrConflict):
		return "That action conflicts with the current state. Please refresh."
	case errors.Is(err, ErrRateLimited):
		return "You're going a little fast. Please slow down."
	case errors.Is(err, ErrPaymentIncomplete):
		return "Payment has not been completed yet."
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTransient):
		return "The request timed out. Please try again."
	default:
		return genericMessage
	}
}

// IsKnown reports whether err belongs to the taxonomy. Unknown errors are
// logged by callers before being replaced by the generic message.
func IsKnown(err error) bool {
	return Code(err) != codes.Internal
}

// InvalidArgument creates a gRPC InvalidArgument error.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
