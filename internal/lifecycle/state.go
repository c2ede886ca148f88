// Package lifecycle drives every resource of a topology from Waiting to
// Running or Failed, publishing each resource's connection string once its
// inputs are available.
package lifecycle

import "sync"

// State is the lifecycle state of a resource within one publish pass.
type State int

const (
	StateWaiting State = iota
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "Waiting"
	case StateRunning:
		return "Running"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// EventType identifies a lifecycle transition.
type EventType int

const (
	EventWaiting EventType = iota
	EventEvaluating
	EventRunning
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventWaiting:
		return "waiting"
	case EventEvaluating:
		return "evaluating"
	case EventRunning:
		return "running"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports a transition of one resource.
type Event struct {
	Resource string
	Type     EventType
	Err      error
}

// Observer receives lifecycle events. OnEvent is called from the goroutine
// evaluating the resource, so implementations must be safe for concurrent
// use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Recorder is an Observer that keeps every event in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
