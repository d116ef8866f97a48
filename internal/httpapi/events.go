package httpapi

import (
	"sync"

	"inferd/pkg/types"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; delivery is at-most-once.
const subscriberBuffer = 64

// EventStream fans inference events out to connected /events listeners.
// It implements the queue package's EventSink and never blocks a producer.
type EventStream struct {
	mu   sync.Mutex
	subs map[chan types.InferenceEvent]struct{}
}

func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[chan types.InferenceEvent]struct{})}
}

// Emit delivers e to every subscriber, dropping it for any subscriber whose
// buffer is full.
func (s *EventStream) Emit(e types.InferenceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away.
func (s *EventStream) Subscribe() (<-chan types.InferenceEvent, func()) {
	ch := make(chan types.InferenceEvent, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	eventSubscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			eventSubscribers.Dec()
		})
	}
	return ch, cancel
}

// SubscriberCount reports the number of connected listeners.
func (s *EventStream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
