package presence

import (
	"encoding/json"
	"fmt"

	"github.com/Kalantar81/window-counter/pkg/logger"
	"github.com/Kalantar81/window-counter/pkg/protocol"
)

// Event kinds recorded through the EventSink
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventStateUpdated = "state_updated"
	EventVisibility   = "visibility_changed"
	EventRouted       = "location_routed"
	EventRoutingMiss  = "routing_miss"
)

// EventSink receives registry lifecycle events for observational
// recording. Implementations must not block.
type EventSink interface {
	Record(kind, clientID, detail string)
}

// Routing controls which records are eligible location-routing targets.
type Routing struct {
	TargetTab      string
	RequireVisible bool
}

// Hub owns the presence registry and coordinates all mutations with the
// broadcast fan-out and location routing.
type Hub struct {
	registry *Registry
	routing  Routing
	log      *logger.Logger
	sink     EventSink
}

// NewHub creates a hub with an empty registry
func NewHub(routing Routing, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get()
	}
	return &Hub{
		registry: NewRegistry(),
		routing:  routing,
		log:      log,
	}
}

// SetEventSink attaches an optional event recorder
func (h *Hub) SetEventSink(sink EventSink) {
	h.sink = sink
}

func (h *Hub) record(kind, clientID, detail string) {
	if h.sink != nil {
		h.sink.Record(kind, clientID, detail)
	}
}

// Attach registers a channel under a client ID and broadcasts the new
// registry state to every open channel.
func (h *Hub) Attach(id string, ch Channel) {
	created := h.registry.UpsertChannel(id, ch)
	h.log.InfoWith("client connected", "clientID", id, "newRecord", created)
	h.record(EventConnected, id, "")
	h.BroadcastState()
}

// Detach removes a channel from a client's record, deleting the record
// when it was the last one. A broadcast always follows so peers observe
// the departure.
func (h *Hub) Detach(id string, ch Channel) {
	deleted := h.registry.RemoveChannel(id, ch)
	h.log.InfoWith("client disconnected", "clientID", id, "recordDeleted", deleted)
	h.record(EventDisconnected, id, "")
	h.BroadcastState()
}

// ApplyState replaces the full state of a client's record and broadcasts.
// An update for an unknown ID is logged and dropped without a broadcast.
func (h *Hub) ApplyState(id string, state protocol.TabState) {
	if !h.registry.ApplyUpdate(id, state) {
		h.log.WarnWith("state update for unknown client", "clientID", id)
		return
	}
	h.log.DebugWith("state updated", "clientID", id, "tabLocation", state.TabLocation, "visible", state.IsVisible)
	h.record(EventStateUpdated, id, state.TabLocation)
	h.BroadcastState()
}

// ApplyVisibility applies a visibility transition and broadcasts. A
// change for an unknown ID is logged and dropped without a broadcast.
func (h *Hub) ApplyVisibility(id string, isVisible bool, timestamp int64) {
	if !h.registry.ApplyVisibility(id, isVisible, timestamp) {
		h.log.WarnWith("visibility change for unknown client", "clientID", id)
		return
	}
	h.log.DebugWith("visibility changed", "clientID", id, "visible", isVisible)
	h.record(EventVisibility, id, fmt.Sprintf("visible=%t", isVisible))
	h.BroadcastState()
}

// Snapshot returns the current registry state, identical in shape and
// values to what a broadcast would carry at this instant.
func (h *Hub) Snapshot() []protocol.TabState {
	return h.registry.Snapshot()
}

// ClientCount returns the number of registered client records
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}

// BroadcastState serializes the snapshot once and sends the identical
// message to every open channel. Sends are best-effort; channels that
// are closed or backed up are skipped.
func (h *Hub) BroadcastState() {
	states := h.registry.Snapshot()
	data, err := protocol.EncodeStateUpdate(states)
	if err != nil {
		h.log.ErrorWithErr("failed to encode state update", err)
		return
	}

	channels := h.registry.Channels()
	for _, ch := range channels {
		if err := ch.Send(data); err != nil {
			h.log.DebugWith("skipping channel during broadcast", "error", err)
		}
	}
	h.log.DebugWith("broadcast state", "clients", len(states), "channels", len(channels))
}

// RouteLocation selects a single client viewing the routing target tab
// and delivers the payload to all of that client's channels. With
// multiple candidates the most recently updated wins; ties go to the
// lexicographically smallest client ID. Zero candidates is a routine
// outcome, not an error.
func (h *Hub) RouteLocation(payload json.RawMessage) (string, bool) {
	targets := h.registry.Targets(h.routing.TargetTab, h.routing.RequireVisible)
	if len(targets) == 0 {
		h.log.InfoWith("no eligible routing target", "targetTab", h.routing.TargetTab)
		h.record(EventRoutingMiss, "", h.routing.TargetTab)
		return "", false
	}

	best := targets[0]
	for _, t := range targets[1:] {
		if t.LastUpdated > best.LastUpdated ||
			(t.LastUpdated == best.LastUpdated && t.ID < best.ID) {
			best = t
		}
	}

	data, err := protocol.EncodeDrawLocation(payload)
	if err != nil {
		h.log.ErrorWithErr("failed to encode location message", err)
		return "", false
	}

	for _, ch := range best.Channels {
		if err := ch.Send(data); err != nil {
			h.log.DebugWith("skipping channel during location delivery", "clientID", best.ID, "error", err)
		}
	}

	h.log.InfoWith("location routed", "clientID", best.ID, "candidates", len(targets))
	h.record(EventRouted, best.ID, "")
	return best.ID, true
}

// Shutdown closes every channel that supports closing and clears the
// registry. Called once when the server stops.
func (h *Hub) Shutdown() {
	for _, ch := range h.registry.Channels() {
		if closer, ok := ch.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
	h.registry.Clear()
}
