package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	// Inbound messages (client -> server)
	MsgTypeUpdateState      MessageType = "updateState"
	MsgTypeVisibilityChange MessageType = "visibilityChange"

	// Outbound messages (server -> clients)
	MsgTypeStateUpdate  MessageType = "stateUpdate"
	MsgTypeDrawLocation MessageType = "drawLocation"
)

// TabState is the public presence state of one client. All timestamps are
// epoch milliseconds and are supplied by the client.
type TabState struct {
	ClientID             string `json:"clientId"`
	TabID                string `json:"tabId"`
	IsVisible            bool   `json:"isVisible"`
	LastUpdated          int64  `json:"lastUpdated"`
	LastVisibilityChange int64  `json:"lastVisibilityChange"`
	TabLocation          string `json:"tabLocation"`
}

// DefaultTabLocation is the tab location assigned to a record before the
// client reports one.
const DefaultTabLocation = "unknown"

// UpdateStateMessage carries a full state replacement for one client.
type UpdateStateMessage struct {
	Type  MessageType `json:"type"`
	State TabState    `json:"state"`
}

// VisibilityChangeMessage carries a visibility transition for one client.
type VisibilityChangeMessage struct {
	Type      MessageType `json:"type"`
	IsVisible bool        `json:"isVisible"`
	Timestamp int64       `json:"timestamp"`
}

// StateUpdateMessage is the full-registry snapshot broadcast to all channels.
type StateUpdateMessage struct {
	Type  MessageType `json:"type"`
	State []TabState  `json:"state"`
}

// DrawLocationMessage delivers a location payload to a single routed client.
// LocationData is passed through verbatim as submitted.
type DrawLocationMessage struct {
	Type         MessageType     `json:"type"`
	LocationData json.RawMessage `json:"locationData"`
}

// PeekType extracts the message type from a raw payload without decoding
// the rest of the message.
func PeekType(data []byte) (MessageType, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("malformed message: %w", err)
	}
	return envelope.Type, nil
}

// EncodeStateUpdate serializes a snapshot as a stateUpdate message. The
// state list is never encoded as null; an empty registry yields [].
func EncodeStateUpdate(states []TabState) ([]byte, error) {
	if states == nil {
		states = []TabState{}
	}
	return json.Marshal(StateUpdateMessage{
		Type:  MsgTypeStateUpdate,
		State: states,
	})
}

// EncodeDrawLocation serializes a location payload as a drawLocation message.
func EncodeDrawLocation(locationData json.RawMessage) ([]byte, error) {
	return json.Marshal(DrawLocationMessage{
		Type:         MsgTypeDrawLocation,
		LocationData: locationData,
	})
}
