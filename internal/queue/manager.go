package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/provider"
	"inferd/pkg/types"
)

// DispatchFunc selects the provider adapter for a queue's specs.
type DispatchFunc func(types.ModelSpecs) (provider.Adapter, error)

func defaultDispatch(specs types.ModelSpecs) (provider.Adapter, error) {
	return provider.ForSpecs(specs)
}

// Manager owns the set of model queues, creates them lazily, routes
// submissions, performs cancellation and reclaims idle queues.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*Queue
	closed bool

	sink         EventSink
	dispatch     DispatchFunc
	pendingDepth int
	log          zerolog.Logger
	startTime    time.Time
}

// New constructs a Manager emitting to sink with package defaults.
func New(sink EventSink) *Manager {
	return NewWithConfig(ManagerConfig{Sink: sink})
}

// Submit routes a request to the queue for specs.ID, creating the queue on
// first sight. The queue's limits are frozen from that first specs; later
// submissions with a different limit for the same id keep the original.
// Submit never blocks: a full or closed queue surfaces as a local error
// and execution failures surface later as an error event.
func (m *Manager) Submit(req types.InferenceRequest, specs types.ModelSpecs) (string, error) {
	if req.ID == "" {
		return "", ErrInvalidSubmit("empty request id")
	}
	if specs.ID == "" {
		return "", ErrInvalidSubmit("empty model id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", queueClosedError{modelID: specs.ID}
	}
	q, ok := m.queues[specs.ID]
	if !ok {
		q = newQueue(specs, m.sink, m.dispatch, m.pendingDepth, m.log)
		m.queues[specs.ID] = q
		go q.consume()
		queuesActive.Inc()
		m.log.Info().Str("model", specs.ID).Str("engine", specs.Engine).
			Int("max_concurrent", q.limit).Msg("queue created")
	}
	if err := q.enqueue(req); err != nil {
		return "", err
	}
	submissionsTotal.WithLabelValues(specs.ID).Inc()
	m.log.Debug().Str("model", specs.ID).Str("request", req.ID).Msg("request enqueued")
	return req.ID, nil
}

// Cancel aborts the in-flight request with the given id on the given
// queue's registry. It reports false with no side effect when the queue or
// the task no longer exists; cancelling after completion is a no-op.
func (m *Manager) Cancel(modelID, requestID string) bool {
	m.mu.Lock()
	q := m.queues[modelID]
	m.mu.Unlock()
	if q == nil {
		return false
	}
	ok := q.cancelTask(requestID)
	if ok {
		cancellationsTotal.Inc()
		m.log.Info().Str("model", modelID).Str("request", requestID).Msg("request cancelled")
	}
	return ok
}

// Sweep removes every queue that is fully idle: pending channel drained,
// no registered task and no request in handoff between the two. It is
// serialized against Submit by the manager lock, so a queue becoming
// non-empty during the sweep survives. Returns the number removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, q := range m.queues {
		if q.closeIfIdle() {
			delete(m.queues, id)
			removed++
			queuesActive.Dec()
			m.log.Debug().Str("model", id).Msg("idle queue removed")
		}
	}
	return removed
}

// Status reports a point-in-time snapshot of every live queue.
func (m *Manager) Status() []types.QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.QueueStatus, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q.snapshot())
	}
	return out
}

// Uptime reports the time elapsed since the manager was constructed.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Ready reports whether the manager accepts submissions.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Close shuts the manager down: no further submissions are accepted,
// running tasks are cancelled and queued requests that never started are
// drained as cancelled events.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.queues = make(map[string]*Queue)
	m.mu.Unlock()

	for _, q := range queues {
		q.close()
		queuesActive.Dec()
	}
}
