package delivery

import (
	"context"
	"errors"
	"net"
)

type Reason string

const (
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonTransportRejected  Reason = "transport_rejected"
	ReasonNetworkFailure     Reason = "network_failure"
)

// ErrMissingCredentials matches any *Error with ReasonMissingCredentials.
var ErrMissingCredentials = errors.New("delivery: missing credentials")

// Error is the only error type transports return.
type Error struct {
	Reason Reason
	Detail string // remote description or local cause; may be shown to operators
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "delivery: " + string(e.Reason)
	}
	return "delivery: " + string(e.Reason) + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrMissingCredentials && e.Reason == ReasonMissingCredentials
}

func missing(detail string) *Error {
	return &Error{Reason: ReasonMissingCredentials, Detail: detail}
}

func rejected(detail string, err error) *Error {
	return &Error{Reason: ReasonTransportRejected, Detail: detail, Err: err}
}

func network(err error) *Error {
	return &Error{Reason: ReasonNetworkFailure, Detail: err.Error(), Err: err}
}

// classify wraps an arbitrary client error. Errors that already carry a
// reason pass through; timeouts and net errors are network failures;
// anything else is treated as a remote rejection.
func classify(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &ne) {
		return network(err)
	}
	return rejected(err.Error(), err)
}

// ReasonOf returns the reason of a delivery error, or "" for other errors.
func ReasonOf(err error) Reason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
