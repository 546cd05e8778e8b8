// Package telemetry records protocol traffic events for observation. The
// recorder is an explicitly owned dependency injected into the engine, never
// a process-wide singleton.
package telemetry

import (
	"sync"
	"time"
)

// Message directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message kinds
const (
	KindRequest      = "request"
	KindResponse     = "response"
	KindNotification = "notification"
)

// Event is one observed protocol message
type Event struct {
	// ID is assigned by the recorder, monotonically increasing from 1
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ConnID    string    `json:"conn_id,omitempty"`
	Direction string    `json:"direction"`
	Kind      string    `json:"kind"`
	Method    string    `json:"method,omitempty"`
	RequestID int64     `json:"request_id,omitempty"`
}

// Recorder accepts traffic events and serves them back for inspection
type Recorder interface {
	// Record stores one event, assigning its ID
	Record(event Event)

	// EventsSince returns all stored events with ID greater than sinceID,
	// in recording order
	EventsSince(sinceID int64) []Event
}

// MemoryRecorder is an in-memory Recorder
type MemoryRecorder struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

// NewMemoryRecorder creates an empty in-memory recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record stores one event, assigning its ID
func (r *MemoryRecorder) Record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.events = append(r.events, event)
}

// EventsSince returns all stored events with ID greater than sinceID
func (r *MemoryRecorder) EventsSince(sinceID int64) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, 0)
	for _, e := range r.events {
		if e.ID > sinceID {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events
func (r *MemoryRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
