package server

import (
	"github.com/Kalantar81/window-counter/pkg/logger"
	"github.com/Kalantar81/window-counter/pkg/storage"
)

// eventRecorder decouples the hub's mutation path from event-store
// writes: Record queues without blocking and a single goroutine drains
// the queue into the store. When the queue is full the event is dropped.
type eventRecorder struct {
	store    storage.Store
	log      *logger.Logger
	events   chan *storage.Event
	done     chan struct{}
	finished chan struct{}
}

func newEventRecorder(store storage.Store, log *logger.Logger) *eventRecorder {
	r := &eventRecorder{
		store:    store,
		log:      log,
		events:   make(chan *storage.Event, 256),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go r.run()
	return r
}

// Record implements presence.EventSink
func (r *eventRecorder) Record(kind, clientID, detail string) {
	event := &storage.Event{
		Kind:     kind,
		ClientID: clientID,
		Detail:   detail,
	}
	select {
	case r.events <- event:
	default:
		r.log.DebugWith("event queue full, dropping event", "kind", kind)
	}
}

func (r *eventRecorder) run() {
	defer close(r.finished)
	for {
		select {
		case event := <-r.events:
			if err := r.store.RecordEvent(event); err != nil {
				r.log.ErrorWithErr("failed to record event", err, "kind", event.Kind)
			}
		case <-r.done:
			// Drain what is already queued before stopping.
			for {
				select {
				case event := <-r.events:
					if err := r.store.RecordEvent(event); err != nil {
						r.log.ErrorWithErr("failed to record event", err, "kind", event.Kind)
					}
				default:
					return
				}
			}
		}
	}
}

// Stop stops the recorder after draining queued events
func (r *eventRecorder) Stop() {
	close(r.done)
	<-r.finished
}
