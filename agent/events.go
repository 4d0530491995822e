package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventSessionStart  EventKind = "session_start"
	EventSessionEnd    EventKind = "session_end"
	EventStepStart     EventKind = "step_start"
	EventModelRequest  EventKind = "model_request"
	EventModelResponse EventKind = "model_response"
	EventToolStart     EventKind = "tool_start"
	EventToolEnd       EventKind = "tool_end"
	EventLoopDetected  EventKind = "loop_detected"
	EventBudgetWarning EventKind = "budget_warning"
	EventWarning       EventKind = "warning"
	EventError         EventKind = "error"
)

// Event is a typed event emitted during a session run.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	CallID    string    `json:"call_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Success   bool      `json:"success,omitempty"`
}

// EventEmitter delivers typed events to the host application via a channel.
// A nil emitter is valid and drops everything.
type EventEmitter struct {
	sessionID string
	ch        chan Event
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates an emitter with a buffered channel.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan Event, bufferSize),
	}
}

// emit sends an event without blocking. If the emitter is closed or the
// channel is full, the event is dropped.
func (e *EventEmitter) emit(event Event) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event.Timestamp = time.Now()
	event.SessionID = e.sessionID
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than block the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
