package dispatch

import (
	"errors"
	"fmt"

	"dailytales/internal/delivery"
	"dailytales/internal/validation"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindDelivery      Kind = "delivery"
	KindInternal      Kind = "internal"
)

// Stage is where a dispatch failed. Formatting cannot fail and persistence
// failures ride on the Result as a warning, so they have no stage here.
type Stage string

const (
	StageValidating     Stage = "validating"
	StageSettingsLoaded Stage = "settings_loaded"
	StageGenerating     Stage = "generating"
	StageDelivering     Stage = "delivering"
)

var (
	ErrNoSettings   = errors.New("dispatch: delivery settings are not configured")
	ErrNoChatID     = errors.New("dispatch: destination chat id is not configured")
	ErrAutoDisabled = errors.New("dispatch: auto send is disabled")
)

// Error is the only error type returned by Dispatch and AutoDispatch.
type Error struct {
	Kind   Kind
	Stage  Stage
	Reason string // validation message or delivery reason
	Field  string // validation only
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dispatch %s error at %s", e.Kind, e.Stage)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a dispatch error, or KindInternal for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Classify maps an error from outside a dispatch (settings test, storage
// reads) onto the same taxonomy so callers can use UserMessage on it.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return &Error{Kind: KindValidation, Stage: StageValidating, Reason: ve.Message, Field: ve.Field, Err: err}
	case errors.Is(err, delivery.ErrEmptyDestination):
		return &Error{Kind: KindConfiguration, Stage: StageSettingsLoaded, Err: ErrNoChatID}
	case errors.Is(err, delivery.ErrMissingCredentials):
		return &Error{Kind: KindConfiguration, Stage: StageSettingsLoaded, Err: err}
	case delivery.ReasonOf(err) != "":
		return &Error{Kind: KindDelivery, Stage: StageDelivering, Reason: string(delivery.ReasonOf(err)), Err: err}
	default:
		return &Error{Kind: KindInternal, Stage: StageSettingsLoaded, Err: err}
	}
}
