package queue

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const defaultPendingDepth = 100

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Sink receives every outbound InferenceEvent. Defaults to a sink
	// that drops events.
	Sink EventSink
	// Dispatch selects the provider adapter for a queue's specs.
	// Defaults to provider.ForSpecs; tests inject fakes here.
	Dispatch DispatchFunc
	// PendingDepth caps each queue's pending channel.
	PendingDepth int
	Logger       zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		queues:    make(map[string]*Queue),
		sink:      cfg.Sink,
		dispatch:  cfg.Dispatch,
		log:       cfg.Logger,
		startTime: time.Now(),
	}
	if m.sink == nil {
		m.sink = noopSink{}
	}
	if m.dispatch == nil {
		m.dispatch = defaultDispatch
	}
	if cfg.PendingDepth <= 0 {
		m.pendingDepth = defaultPendingDepth
	} else {
		m.pendingDepth = cfg.PendingDepth
	}
	return m
}
