package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/Kalantar81/window-counter/pkg/presence"
	"github.com/Kalantar81/window-counter/pkg/protocol"
)

// UpdateStateHandler applies full state replacements to the hub
type UpdateStateHandler struct {
	hub *presence.Hub
}

// NewUpdateStateHandler creates a handler for updateState messages
func NewUpdateStateHandler(hub *presence.Hub) *UpdateStateHandler {
	return &UpdateStateHandler{hub: hub}
}

// MessageType returns the message type this handler processes
func (h *UpdateStateHandler) MessageType() protocol.MessageType {
	return protocol.MsgTypeUpdateState
}

// Handle parses an updateState message and applies it. The state object
// is required; the record key is the connection's client ID regardless
// of what the payload claims.
func (h *UpdateStateHandler) Handle(clientID string, raw []byte) error {
	var msg struct {
		Type  protocol.MessageType `json:"type"`
		State *protocol.TabState   `json:"state"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed updateState message: %w", err)
	}
	if msg.State == nil {
		return fmt.Errorf("updateState message missing state object")
	}

	h.hub.ApplyState(clientID, *msg.State)
	return nil
}

// VisibilityChangeHandler applies visibility transitions to the hub
type VisibilityChangeHandler struct {
	hub *presence.Hub
}

// NewVisibilityChangeHandler creates a handler for visibilityChange messages
func NewVisibilityChangeHandler(hub *presence.Hub) *VisibilityChangeHandler {
	return &VisibilityChangeHandler{hub: hub}
}

// MessageType returns the message type this handler processes
func (h *VisibilityChangeHandler) MessageType() protocol.MessageType {
	return protocol.MsgTypeVisibilityChange
}

// Handle parses a visibilityChange message and applies it. Both
// isVisible and timestamp are required fields.
func (h *VisibilityChangeHandler) Handle(clientID string, raw []byte) error {
	var msg struct {
		Type      protocol.MessageType `json:"type"`
		IsVisible *bool                `json:"isVisible"`
		Timestamp *int64               `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("malformed visibilityChange message: %w", err)
	}
	if msg.IsVisible == nil || msg.Timestamp == nil {
		return fmt.Errorf("visibilityChange message missing required fields")
	}

	h.hub.ApplyVisibility(clientID, *msg.IsVisible, *msg.Timestamp)
	return nil
}
