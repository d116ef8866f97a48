package queue

import (
	"encoding/json"
	"errors"
	"strings"

	"inferd/internal/provider"
	"inferd/pkg/types"
)

// EventSink receives outbound inference events. Implementations should be
// lightweight and non-blocking; Emit must not panic. Delivery is
// best-effort and at-most-once.
type EventSink interface {
	Emit(types.InferenceEvent)
}

// noopSink is the default; it drops events.
type noopSink struct{}

func (noopSink) Emit(types.InferenceEvent) {}

// errorPayload shapes an adapter failure into the structured wire payload.
// An error whose text already is that JSON shape passes through unchanged.
func errorPayload(err error) *types.EventError {
	msg := err.Error()
	if strings.HasPrefix(msg, "{") {
		var p types.EventError
		if json.Unmarshal([]byte(msg), &p) == nil && p.Message != "" {
			return &p
		}
	}
	e := &types.EventError{Message: msg, Details: msg}
	if cause := errors.Unwrap(err); cause != nil {
		e.Details = cause.Error()
	}
	switch {
	case provider.IsConfigError(err):
		e.Source = "config"
	case provider.IsProviderError(err):
		e.Source = "provider"
	case provider.IsCallbackError(err):
		e.Source = "callback"
	case provider.IsTransportError(err):
		e.Source = "transport"
	}
	return e
}
