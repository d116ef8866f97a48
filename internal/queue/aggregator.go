package queue

import (
	"errors"
	"strings"

	"inferd/internal/provider"
	"inferd/pkg/types"
)

// errTerminated aborts a stream whose request already reached a terminal
// event, usually through cancellation.
var errTerminated = errors.New("request already terminal")

// streamAggregator accumulates one request's chunks into response and
// reasoning buffers. Each chunk goes out immediately as a streaming event
// and is then appended, so on success full_response equals the
// concatenation of all streamed text values in emission order. The
// buffers are owned exclusively by the request's task.
type streamAggregator struct {
	requestID string
	t         *task
	q         *Queue
	response  strings.Builder
	reasoning strings.Builder
}

func newAggregator(requestID string, t *task, q *Queue) *streamAggregator {
	return &streamAggregator{requestID: requestID, t: t, q: q}
}

// OnChunk forwards one normalized chunk as a streaming event.
func (a *streamAggregator) OnChunk(c provider.Chunk) error {
	ev := types.InferenceEvent{RequestID: a.requestID, Status: types.StatusStreaming}
	switch c.Type {
	case provider.ChunkReasoning:
		ev.Result = &types.EventResult{Reasoning: c.Value}
	default:
		ev.Result = &types.EventResult{Text: c.Value}
	}
	if !a.t.emit(a.q, ev) {
		return errTerminated
	}
	switch c.Type {
	case provider.ChunkReasoning:
		a.reasoning.WriteString(c.Value)
	default:
		a.response.WriteString(c.Value)
	}
	return nil
}

// Completed emits the terminal event of a streaming request.
func (a *streamAggregator) Completed() {
	res := &types.EventResult{FullResponse: a.response.String()}
	if a.reasoning.Len() > 0 {
		res.Reasoning = a.reasoning.String()
	}
	a.t.emit(a.q, types.InferenceEvent{
		RequestID: a.requestID,
		Status:    types.StatusCompleted,
		Result:    res,
	})
}

// CompletedText emits the terminal event of a non-streaming request.
func (a *streamAggregator) CompletedText(text string) {
	a.t.emit(a.q, types.InferenceEvent{
		RequestID: a.requestID,
		Status:    types.StatusCompleted,
		Result:    &types.EventResult{Text: text},
	})
}
