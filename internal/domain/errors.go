package domain

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failures a booking operation can report.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindNotFound
	KindCapacityExceeded
	KindPaymentFailed
	KindDuplicatePaymentReference
	KindUpstreamGateway
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindPaymentFailed:
		return "payment_failed"
	case KindDuplicatePaymentReference:
		return "duplicate_payment_reference"
	case KindUpstreamGateway:
		return "upstream_gateway_error"
	default:
		return "internal_error"
	}
}

// Storage-level sentinels. Repositories return these and the booking
// workflow turns them into a typed Error.
var (
	ErrNoSeatsLeft        = errors.New("no seats left")
	ErrDuplicateReference = errors.New("duplicate payment reference")
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func CapacityExceeded(msg string) *Error {
	return &Error{Kind: KindCapacityExceeded, Message: msg}
}

func PaymentFailed(msg string) *Error {
	return &Error{Kind: KindPaymentFailed, Message: msg}
}

func DuplicatePaymentReference(msg string, err error) *Error {
	return &Error{Kind: KindDuplicatePaymentReference, Message: msg, Err: err}
}

func UpstreamGateway(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamGateway, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind carried by err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for err. Untyped errors never
// leak their text.
func MessageOf(err error) string {
	var target *Error
	if errors.As(err, &target) && target.Kind != KindInternal && target.Message != "" {
		return target.Message
	}
	return "Internal server error"
}
