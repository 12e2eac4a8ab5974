// Package livequery fans out server push frames to per-subscription sinks,
// keyed by the monitor id the server assigned at subscription time.
// Grounded on vitess's messageManager: a mutex-guarded registry of
// receivers, with delivery and removal both happening under the lock held
// only across one sink at a time.
package livequery

import (
	"sync"

	"github.com/orientgo/driver/internal/wire"
)

// EventKind mirrors wire.LiveEventKind at the session-facing layer.
type EventKind = wire.LiveEventKind

const (
	Created = wire.LiveEventCreated
	Updated = wire.LiveEventUpdated
	Deleted = wire.LiveEventDeleted
)

// Event is one row-level notification delivered to a live-query
// subscriber. Before is nil for Created; After is nil for Deleted.
type Event struct {
	Kind   EventKind
	Before *wire.Document
	After  *wire.Document
}

// Sink receives events for one subscription and is notified when the
// subscription ends (server sent Ended, or Unregister was called).
type Sink struct {
	Events chan Event
	done   chan struct{}
}

// Ended reports whether the subscription has been torn down.
func (s *Sink) Ended() <-chan struct{} { return s.done }

// Manager is the connection-scoped registry of live-query subscriptions.
type Manager struct {
	mu   sync.Mutex
	subs map[int32]*Sink
}

// New creates an empty live-query manager for one connection.
func New() *Manager {
	return &Manager{subs: make(map[int32]*Sink)}
}

// Register creates and stores a sink for monitorID, with buffer capacity
// sized for one push frame's worth of events without blocking the reader
// goroutine that dispatches them.
func (m *Manager) Register(monitorID int32, buffer int) *Sink {
	if buffer <= 0 {
		buffer = 16
	}
	sink := &Sink{Events: make(chan Event, buffer), done: make(chan struct{})}

	m.mu.Lock()
	m.subs[monitorID] = sink
	m.mu.Unlock()

	return sink
}

// Unregister removes monitorID's sink and closes its done and Events
// channels, used when the caller unsubscribes explicitly.
func (m *Manager) Unregister(monitorID int32) {
	m.mu.Lock()
	sink, ok := m.subs[monitorID]
	if ok {
		delete(m.subs, monitorID)
	}
	m.mu.Unlock()

	if ok {
		close(sink.done)
		close(sink.Events)
	}
}

// Dispatch delivers one decoded push frame to its registered sink. A
// frame for an unknown (already-unregistered) monitor id is dropped
// silently. If the frame reports Ended, the sink is removed and its done
// and Events channels are closed after its events are delivered.
func (m *Manager) Dispatch(pf *wire.PushFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sink, ok := m.subs[pf.MonitorID]
	if ok && pf.Ended {
		delete(m.subs, pf.MonitorID)
	}

	if !ok {
		return
	}

	for _, ev := range pf.Events {
		sink.Events <- Event{Kind: ev.Kind, Before: ev.Before, After: ev.After}
	}

	if pf.Ended {
		close(sink.done)
		close(sink.Events)
	}
}

// Close tears down every remaining subscription, used when the owning
// connection fails or is closed.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[int32]*Sink)
	m.mu.Unlock()

	for _, sink := range subs {
		close(sink.done)
		close(sink.Events)
	}
}
