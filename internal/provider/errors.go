package provider

import (
	"errors"
	"fmt"
)

// configError signals a missing or invalid field in specs.Config or in the
// request itself. It fails fast, before any network call.
type configError struct {
	field  string
	reason string
}

func (e configError) Error() string {
	return fmt.Sprintf("provider config: %s: %s", e.field, e.reason)
}

// ErrMissingConfig reports a required config field that is absent.
func ErrMissingConfig(field string) error {
	return configError{field: field, reason: "required field is missing"}
}

// ErrInvalidConfig reports a config or request field with a bad value.
func ErrInvalidConfig(field, reason string) error {
	return configError{field: field, reason: reason}
}

// IsConfigError reports whether err is a pre-flight configuration error.
func IsConfigError(err error) bool {
	var e configError
	return errors.As(err, &e)
}

// transportError wraps a network-level failure (connection, timeout).
type transportError struct {
	op  string
	err error
}

func (e transportError) Error() string {
	if e.err == nil {
		return e.op
	}
	return e.op + ": " + e.err.Error()
}

func (e transportError) Unwrap() error { return e.err }

func errTransport(op string, err error) error { return transportError{op: op, err: err} }

// IsTransportError reports whether err is a network-level failure.
func IsTransportError(err error) bool {
	var e transportError
	return errors.As(err, &e)
}

// providerError is a structured error returned by the upstream inside an
// otherwise successful response, or a non-2xx status.
type providerError struct {
	message string
	status  int
}

func (e providerError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.status, e.message)
	}
	return "provider error: " + e.message
}

func errProvider(status int, message string) error {
	return providerError{message: message, status: status}
}

// IsProviderError reports whether err is an upstream-reported failure.
func IsProviderError(err error) bool {
	var e providerError
	return errors.As(err, &e)
}

// callbackError wraps a failure of the chunk consumer itself. It aborts the
// stream and is reported like a transport error.
type callbackError struct{ err error }

func (e callbackError) Error() string { return "chunk callback: " + e.err.Error() }

func (e callbackError) Unwrap() error { return e.err }

// IsCallbackError reports whether err originated in the chunk consumer.
func IsCallbackError(err error) bool {
	var e callbackError
	return errors.As(err, &e)
}

// unknownEngineError signals an unsupported ModelSpecs.Engine value.
type unknownEngineError struct{ engine string }

func (e unknownEngineError) Error() string {
	return "unsupported inference engine: " + e.engine
}

// IsUnknownEngine reports whether err indicates an unsupported engine.
func IsUnknownEngine(err error) bool {
	var e unknownEngineError
	return errors.As(err, &e)
}
