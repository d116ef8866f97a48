package queue

import (
	"context"
	"testing"
	"time"

	"inferd/internal/provider"
	"inferd/pkg/types"
)

// fakeAdapter delegates to per-test closures.
type fakeAdapter struct {
	converse func(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs) (string, error)
	stream   func(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs, onChunk provider.ChunkFunc) error
}

func (f fakeAdapter) Converse(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs) (string, error) {
	if f.converse == nil {
		return "", nil
	}
	return f.converse(ctx, req, specs)
}

func (f fakeAdapter) ConverseStream(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs, onChunk provider.ChunkFunc) error {
	if f.stream == nil {
		return nil
	}
	return f.stream(ctx, req, specs, onChunk)
}

func newTestManager(sink EventSink, a provider.Adapter, pendingDepth int) *Manager {
	return NewWithConfig(ManagerConfig{
		Sink:         sink,
		PendingDepth: pendingDepth,
		Dispatch: func(types.ModelSpecs) (provider.Adapter, error) {
			return a, nil
		},
	})
}

func testSpecs(id string, maxConcurrent int) types.ModelSpecs {
	return types.ModelSpecs{
		ID:                    id,
		Engine:                "openai_compatible",
		ModelType:             "chat",
		Config:                map[string]any{"base_url": "http://unused"},
		MaxConcurrentRequests: maxConcurrent,
	}
}

func testRequest(id string, stream bool) types.InferenceRequest {
	return types.InferenceRequest{
		ID:          id,
		MessageList: []types.Message{{Role: types.RoleUser, Text: "hi"}},
		Stream:      stream,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

// waitTerminal waits until every listed request id has a terminal event.
func waitTerminal(t *testing.T, sink *MemorySink, ids ...string) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		for _, id := range ids {
			if !hasTerminal(sink, id) {
				return false
			}
		}
		return true
	})
}

func hasTerminal(sink *MemorySink, id string) bool {
	for _, e := range sink.ForRequest(id) {
		if e.Status.Terminal() {
			return true
		}
	}
	return false
}
