package testutil

import (
	"context"
	"sync"

	"github.com/fekuna/omnipos-ledger-service/internal/event"
)

// EventRecorder is an event.Publisher that keeps everything it is given.
type EventRecorder struct {
	mu     sync.Mutex
	events []event.Event
	Err    error
}

func (r *EventRecorder) Publish(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

func (r *EventRecorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *EventRecorder) OfType(eventType string) []event.Event {
	var out []event.Event
	for _, e := range r.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
