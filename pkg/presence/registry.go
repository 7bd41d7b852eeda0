package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/Kalantar81/window-counter/pkg/protocol"
)

// Channel is a non-owning reference to one duplex connection. Send must
// not block: implementations queue the data or drop it with an error.
// The transport owns the connection's lifecycle, not the registry.
type Channel interface {
	Send(data []byte) error
}

// record is the authoritative presence state for one client ID plus the
// live channels currently bound to it.
type record struct {
	state    protocol.TabState
	channels map[Channel]struct{}
}

// Registry is the concurrency-safe store of client records. A record is
// created when the first channel registers under its ID and deleted when
// the last one is removed.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*record),
	}
}

// UpsertChannel registers a channel under the given client ID, creating a
// default record if none exists. It reports whether a new record was
// created.
func (r *Registry) UpsertChannel(id string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		now := time.Now().UnixMilli()
		rec = &record{
			state: protocol.TabState{
				ClientID:             id,
				IsVisible:            true,
				LastUpdated:          now,
				LastVisibilityChange: now,
				TabLocation:          protocol.DefaultTabLocation,
			},
			channels: make(map[Channel]struct{}),
		}
		r.records[id] = rec
	}
	rec.channels[ch] = struct{}{}
	return !ok
}

// ApplyUpdate replaces all non-key fields of the record for id. The
// client ID itself is immutable; the value in state is ignored. Reports
// false without mutating anything if no record exists for id.
func (r *Registry) ApplyUpdate(id string, state protocol.TabState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	state.ClientID = id
	rec.state = state
	return true
}

// ApplyVisibility applies a visibility transition to the record for id.
// Reports false without mutating anything if no record exists.
func (r *Registry) ApplyVisibility(id string, isVisible bool, timestamp int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	rec.state.IsVisible = isVisible
	rec.state.LastVisibilityChange = timestamp
	rec.state.LastUpdated = timestamp
	return true
}

// RemoveChannel removes a channel from the record for id. When the last
// channel is removed the record is deleted. Reports whether the record
// was deleted.
func (r *Registry) RemoveChannel(id string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	delete(rec.channels, ch)
	if len(rec.channels) == 0 {
		delete(r.records, id)
		return true
	}
	return false
}

// Snapshot returns an independent copy of every record's public fields,
// sorted by client ID. Channel sets are not exposed.
func (r *Registry) Snapshot() []protocol.TabState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]protocol.TabState, 0, len(r.records))
	for _, rec := range r.records {
		states = append(states, rec.state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].ClientID < states[j].ClientID
	})
	return states
}

// Channels returns every live channel across all records
func (r *Registry) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]Channel, 0, len(r.records))
	for _, rec := range r.records {
		for ch := range rec.channels {
			channels = append(channels, ch)
		}
	}
	return channels
}

// ChannelsFor returns the live channels bound to id
func (r *Registry) ChannelsFor(id string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	channels := make([]Channel, 0, len(rec.channels))
	for ch := range rec.channels {
		channels = append(channels, ch)
	}
	return channels
}

// Target is a routing candidate captured at one point in time together
// with its channels.
type Target struct {
	ID          string
	LastUpdated int64
	Channels    []Channel
}

// Targets returns all records viewing the given tab, optionally
// restricted to visible ones. State and channels are captured under a
// single lock so selection and delivery see one consistent view.
func (r *Registry) Targets(tab string, requireVisible bool) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []Target
	for id, rec := range r.records {
		if rec.state.TabLocation != tab {
			continue
		}
		if requireVisible && !rec.state.IsVisible {
			continue
		}
		channels := make([]Channel, 0, len(rec.channels))
		for ch := range rec.channels {
			channels = append(channels, ch)
		}
		targets = append(targets, Target{
			ID:          id,
			LastUpdated: rec.state.LastUpdated,
			Channels:    channels,
		})
	}
	return targets
}

// Len returns the number of registered client records
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Clear removes every record. Used at shutdown after the transport has
// closed the underlying connections.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*record)
}
