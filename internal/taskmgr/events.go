package taskmgr

import "github.com/kirodev/speckit/internal/events"

// EventType, TaskEvent, Listener and ListenerFunc are aliases onto the
// shared events package so callers can depend on taskmgr alone without
// reaching into internal/events directly, while the Task Manager and the
// Orchestrator both fan events out through the same registry type.
type (
	EventType    = events.Type
	TaskEvent    = events.TaskEvent
	Listener     = events.Listener
	ListenerFunc = events.ListenerFunc
)

const (
	EventQueued    = events.TypeQueued
	EventStarted   = events.TypeStarted
	EventCompleted = events.TypeCompleted
	EventReset     = events.TypeReset
	EventAttempt   = events.TypeAttempt
	EventExhausted = events.TypeExhausted
	EventSkipped   = events.TypeSkipped
)

// AddListener registers a listener. Listeners are invoked in registration
// order (§9 ordering-per-task guarantee).
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Add(l)
}

// emit delivers ev to every registered listener via the shared registry,
// which isolates each listener's panics from the others and from the
// caller driving the transition.
func (m *Manager) emit(ev TaskEvent) {
	m.registry.Emit(ev)
}
