package messaging

import (
	"sync"
	"testing"

	"github.com/Kalantar81/window-counter/pkg/presence"
	"github.com/Kalantar81/window-counter/pkg/protocol"
)

type countingChannel struct {
	mu   sync.Mutex
	sent int
}

func (c *countingChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	return nil
}

func (c *countingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *presence.Hub, *countingChannel) {
	t.Helper()
	hub := presence.NewHub(presence.Routing{TargetTab: "map", RequireVisible: true}, nil)
	ch := &countingChannel{}
	hub.Attach("c1", ch)

	d := NewDispatcher()
	if err := d.Register(NewUpdateStateHandler(hub)); err != nil {
		t.Fatalf("failed to register updateState handler: %v", err)
	}
	if err := d.Register(NewVisibilityChangeHandler(hub)); err != nil {
		t.Fatalf("failed to register visibilityChange handler: %v", err)
	}
	return d, hub, ch
}

func TestRegisterDuplicateHandler(t *testing.T) {
	d := NewDispatcher()
	hub := presence.NewHub(presence.Routing{TargetTab: "map"}, nil)

	if err := d.Register(NewUpdateStateHandler(hub)); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := d.Register(NewUpdateStateHandler(hub)); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := d.Register(nil); err == nil {
		t.Error("nil handler should be rejected")
	}
}

func TestHasHandler(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	if !d.HasHandler(protocol.MsgTypeUpdateState) {
		t.Error("expected handler for updateState")
	}
	if d.HasHandler(protocol.MsgTypeDrawLocation) {
		t.Error("unexpected handler for drawLocation")
	}
}

func TestDispatchUpdateState(t *testing.T) {
	d, hub, ch := newTestDispatcher(t)
	before := ch.count()

	raw := []byte(`{"type":"updateState","state":{"clientId":"c1","tabId":"t1","isVisible":true,"lastUpdated":100,"lastVisibilityChange":90,"tabLocation":"map"}}`)
	if err := d.Dispatch("c1", raw); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	state := hub.Snapshot()[0]
	if state.TabLocation != "map" || state.LastUpdated != 100 {
		t.Errorf("state not applied: %+v", state)
	}
	if ch.count() != before+1 {
		t.Errorf("expected exactly one broadcast, got %d", ch.count()-before)
	}
}

func TestDispatchVisibilityChange(t *testing.T) {
	d, hub, _ := newTestDispatcher(t)

	raw := []byte(`{"type":"visibilityChange","isVisible":false,"timestamp":12345}`)
	if err := d.Dispatch("c1", raw); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	state := hub.Snapshot()[0]
	if state.IsVisible {
		t.Error("visibility change not applied")
	}
	if state.LastVisibilityChange != 12345 || state.LastUpdated != 12345 {
		t.Errorf("timestamps not applied: %+v", state)
	}
}

func TestDispatchUnknownTypeIgnored(t *testing.T) {
	d, hub, ch := newTestDispatcher(t)
	before := ch.count()
	snapshot := hub.Snapshot()

	if err := d.Dispatch("c1", []byte(`{"type":"somethingElse","x":1}`)); err != nil {
		t.Errorf("unknown message type must be ignored without error, got %v", err)
	}

	if ch.count() != before {
		t.Error("unknown message type must not trigger a broadcast")
	}
	if hub.Snapshot()[0] != snapshot[0] {
		t.Error("unknown message type must not mutate state")
	}
}

func TestDispatchMalformedJSON(t *testing.T) {
	d, hub, ch := newTestDispatcher(t)
	before := ch.count()
	snapshot := hub.Snapshot()

	if err := d.Dispatch("c1", []byte(`{not json`)); err == nil {
		t.Error("malformed payload should return an error")
	}

	if ch.count() != before {
		t.Error("malformed payload must not trigger a broadcast")
	}
	if hub.Snapshot()[0] != snapshot[0] {
		t.Error("malformed payload must not mutate state")
	}
}

func TestDispatchUpdateStateMissingState(t *testing.T) {
	d, _, ch := newTestDispatcher(t)
	before := ch.count()

	if err := d.Dispatch("c1", []byte(`{"type":"updateState"}`)); err == nil {
		t.Error("updateState without a state object should return an error")
	}
	if ch.count() != before {
		t.Error("invalid updateState must not trigger a broadcast")
	}
}

func TestDispatchVisibilityChangeMissingFields(t *testing.T) {
	d, hub, _ := newTestDispatcher(t)
	visibleBefore := hub.Snapshot()[0].IsVisible

	if err := d.Dispatch("c1", []byte(`{"type":"visibilityChange","isVisible":false}`)); err == nil {
		t.Error("visibilityChange without timestamp should return an error")
	}
	if hub.Snapshot()[0].IsVisible != visibleBefore {
		t.Error("invalid visibilityChange must not mutate state")
	}
}

func TestConnectionSurvivesMalformedMessage(t *testing.T) {
	d, hub, _ := newTestDispatcher(t)

	// A malformed message followed by a valid one: the valid one applies.
	d.Dispatch("c1", []byte(`garbage`))
	raw := []byte(`{"type":"updateState","state":{"clientId":"c1","isVisible":true,"lastUpdated":7,"tabLocation":"map"}}`)
	if err := d.Dispatch("c1", raw); err != nil {
		t.Fatalf("valid message after malformed one failed: %v", err)
	}
	if hub.Snapshot()[0].LastUpdated != 7 {
		t.Error("valid message after malformed one was not applied")
	}
}
