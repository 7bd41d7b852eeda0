package storage

import "time"

// Event is one recorded registry or routing event
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ClientID  string    `json:"clientId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store defines the interface for the event history backend
type Store interface {
	// RecordEvent appends an event. A missing ID or timestamp is
	// filled in by the implementation.
	RecordEvent(event *Event) error

	// GetRecentEvents returns up to limit events, newest first.
	GetRecentEvents(limit int) ([]*Event, error)

	// CountEvents returns the total number of recorded events.
	CountEvents() (int, error)

	// Lifecycle
	Close() error
}
