package types

import "encoding/json"

// Status of an inference event. For a given request id the emitted sequence
// is zero or more streaming events followed by exactly one terminal status.
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s ends a request's event sequence.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// EventResult carries the payload of a streaming or completed event.
type EventResult struct {
	// Single-shot result text (non-streaming completion).
	Text string `json:"text,omitempty"`
	// Concatenation of all streamed text chunks (streaming completion).
	FullResponse string `json:"full_response,omitempty"`
	// Streamed reasoning delta, or the aggregated reasoning on completion.
	Reasoning string `json:"reasoning,omitempty"`
}

// EventError is the structured error payload of an error event. It is never
// a bare string on the wire, but unmarshals from one for compatibility with
// producers that emit plain messages.
type EventError struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Source  string `json:"source,omitempty"`
}

func (e *EventError) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		e.Message = s
		e.Details = s
		return nil
	}
	type plain EventError
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = EventError(p)
	return nil
}

// InferenceEvent is the outbound event emitted for a request, one JSON
// object per emission.
type InferenceEvent struct {
	RequestID string       `json:"request_id"`
	Status    Status       `json:"status"`
	Result    *EventResult `json:"result"`
	Error     *EventError  `json:"error"`
}
