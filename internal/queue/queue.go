package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Queue owns one model's pending channel, admission permits and registry
// of executing tasks. Lock order: manager lock before queue lock; the
// queue lock is never held across a blocking operation.
type Queue struct {
	specs    types.ModelSpecs
	limit    int
	sink     EventSink
	dispatch DispatchFunc
	log      zerolog.Logger

	pending chan types.InferenceRequest
	permits chan struct{}

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	// enqueued counts accepted requests, completed counts requests whose
	// task has fully finished (or that were drained at close). The queue
	// is idle iff the two are equal; that also covers a request dequeued
	// by the consumer but not yet registered.
	enqueued  uint64
	completed uint64
	empty     bool
}

// task is the cancellable handle of one executing request. Its mutex
// serializes event emission against cancellation so a streaming event can
// never trail the terminal event.
type task struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	terminal bool
}

func newQueue(specs types.ModelSpecs, sink EventSink, dispatch DispatchFunc, pendingDepth int, log zerolog.Logger) *Queue {
	limit := specs.MaxConcurrentRequests
	if limit <= 0 {
		limit = 1
	}
	return &Queue{
		specs:    specs,
		limit:    limit,
		sink:     sink,
		dispatch: dispatch,
		log:      log.With().Str("model", specs.ID).Logger(),
		pending:  make(chan types.InferenceRequest, pendingDepth),
		permits:  make(chan struct{}, limit),
		tasks:    make(map[string]*task),
		empty:    true,
	}
}

// enqueue pushes a request without blocking. The recover guard turns a
// send on a just-closed channel into a local error.
func (q *Queue) enqueue(req types.InferenceRequest) (err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return queueClosedError{modelID: q.specs.ID}
	}
	q.mu.Unlock()

	defer func() {
		if recover() != nil {
			err = queueClosedError{modelID: q.specs.ID}
		}
	}()
	select {
	case q.pending <- req:
	default:
		return queueFullError{modelID: q.specs.ID}
	}

	q.mu.Lock()
	q.enqueued++
	q.empty = false
	q.mu.Unlock()
	return nil
}

// consume is the single consumer loop: strictly FIFO dequeue, then one
// admission permit per task. Acquiring the permit blocks only this loop,
// never a submitter.
func (q *Queue) consume() {
	for req := range q.pending {
		if q.isClosed() {
			q.drain(req)
			continue
		}
		q.permits <- struct{}{}
		if q.isClosed() {
			<-q.permits
			q.drain(req)
			continue
		}
		t := q.register(req.ID)
		go q.run(t, req)
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// register installs the cancellation handle before any provider work so a
// Cancel call is observable immediately.
func (q *Queue) register(requestID string) *task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{id: requestID, ctx: ctx, cancel: cancel}
	q.mu.Lock()
	q.tasks[requestID] = t
	q.mu.Unlock()
	tasksInflight.WithLabelValues(q.specs.ID).Inc()
	return t
}

// run executes one request. Registry removal and permit release happen
// unconditionally, whatever the outcome.
func (q *Queue) run(t *task, req types.InferenceRequest) {
	defer q.finish(t)
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("request", req.ID).Any("panic", r).Msg("task panicked")
			t.emit(q, types.InferenceEvent{
				RequestID: req.ID,
				Status:    types.StatusError,
				Error:     errorPayload(fmt.Errorf("task panic: %v", r)),
			})
		}
	}()
	q.execute(t, req)
}

func (q *Queue) execute(t *task, req types.InferenceRequest) {
	adapter, err := q.dispatch(q.specs)
	if err == nil {
		agg := newAggregator(req.ID, t, q)
		if req.Stream {
			if err = adapter.ConverseStream(t.ctx, req, q.specs, agg.OnChunk); err == nil {
				agg.Completed()
				return
			}
		} else {
			var text string
			if text, err = adapter.Converse(t.ctx, req, q.specs); err == nil {
				agg.CompletedText(text)
				return
			}
		}
	}
	// A cancelled task already emitted its terminal event; emit suppresses
	// this one. Anything else becomes the single error event.
	t.emit(q, types.InferenceEvent{
		RequestID: req.ID,
		Status:    types.StatusError,
		Error:     errorPayload(err),
	})
}

func (q *Queue) finish(t *task) {
	<-q.permits
	q.mu.Lock()
	delete(q.tasks, t.id)
	q.completed++
	q.empty = q.enqueued == q.completed
	q.mu.Unlock()
	tasksInflight.WithLabelValues(q.specs.ID).Dec()
}

// cancelTask claims and aborts one registered task. Removal from the
// registry and the terminal flag together make the claim race-free: a
// task that already emitted its terminal event reports false here. The
// cancelled event goes out before the context is cancelled so the task's
// own error path, once woken, finds the terminal slot already taken.
func (q *Queue) cancelTask(requestID string) bool {
	q.mu.Lock()
	t, ok := q.tasks[requestID]
	if ok {
		delete(q.tasks, requestID)
	}
	q.mu.Unlock()
	if !ok {
		return false
	}
	if !t.emit(q, types.InferenceEvent{
		RequestID: requestID,
		Status:    types.StatusCancelled,
	}) {
		return false
	}
	t.cancel()
	return true
}

// drain disposes of a request dequeued after close: it never ran, so its
// terminal event is cancelled.
func (q *Queue) drain(req types.InferenceRequest) {
	q.deliver(types.InferenceEvent{
		RequestID: req.ID,
		Status:    types.StatusCancelled,
	})
	q.mu.Lock()
	q.completed++
	q.empty = q.enqueued == q.completed
	q.mu.Unlock()
}

// closeIfIdle closes the queue when nothing is pending, executing or in
// handoff. Callers hold the manager lock.
func (q *Queue) closeIfIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.enqueued != q.completed {
		return false
	}
	q.closed = true
	close(q.pending)
	return true
}

// close shuts the queue down immediately: running tasks are cancelled and
// anything still pending is drained by the consumer loop.
func (q *Queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.pending)
	tasks := make([]*task, 0, len(q.tasks))
	for _, t := range q.tasks {
		tasks = append(tasks, t)
	}
	q.mu.Unlock()

	for _, t := range tasks {
		t.emit(q, types.InferenceEvent{
			RequestID: t.id,
			Status:    types.StatusCancelled,
		})
		t.cancel()
	}
}

func (q *Queue) snapshot() types.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return types.QueueStatus{
		ModelID:       q.specs.ID,
		Engine:        q.specs.Engine,
		Pending:       len(q.pending),
		Inflight:      len(q.tasks),
		MaxConcurrent: q.limit,
		Empty:         q.empty,
	}
}

func (q *Queue) deliver(ev types.InferenceEvent) {
	eventsTotal.WithLabelValues(string(ev.Status)).Inc()
	q.sink.Emit(ev)
}

// emit delivers one event for this task unless a terminal event was
// already delivered. Reports whether the event went out.
func (t *task) emit(q *Queue, ev types.InferenceEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal {
		return false
	}
	if ev.Status.Terminal() {
		t.terminal = true
	}
	q.deliver(ev)
	return true
}
