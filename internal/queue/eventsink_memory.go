package queue

import (
	"sync"

	"inferd/pkg/types"
)

// MemorySink stores events in-memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []types.InferenceEvent
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Emit(e types.InferenceEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *MemorySink) Events() []types.InferenceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.InferenceEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ForRequest returns the events emitted for one request id, in order.
func (s *MemorySink) ForRequest(id string) []types.InferenceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.InferenceEvent
	for _, e := range s.events {
		if e.RequestID == id {
			out = append(out, e)
		}
	}
	return out
}
