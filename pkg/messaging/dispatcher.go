package messaging

import (
	"fmt"
	"sync"

	"github.com/Kalantar81/window-counter/pkg/logger"
	"github.com/Kalantar81/window-counter/pkg/protocol"
)

// Handler handles a specific inbound message type
type Handler interface {
	// Handle processes a raw message from the identified client
	Handle(clientID string, raw []byte) error
	// MessageType returns the type of message this handler processes
	MessageType() protocol.MessageType
}

// Dispatcher routes raw messages to the handler registered for their type
type Dispatcher struct {
	handlers map[protocol.MessageType]Handler
	mu       sync.RWMutex
}

// NewDispatcher creates a new message dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.MessageType]Handler),
	}
}

// Register registers a handler for a message type
func (d *Dispatcher) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	msgType := handler.MessageType()
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[msgType]; exists {
		return fmt.Errorf("handler already registered for message type: %s", msgType)
	}

	d.handlers[msgType] = handler
	return nil
}

// Dispatch decodes the message type and invokes the matching handler.
// Messages with an unrecognized type are ignored. A parse failure is
// returned to the caller, which logs and drops the message.
func (d *Dispatcher) Dispatch(clientID string, raw []byte) error {
	msgType, err := protocol.PeekType(raw)
	if err != nil {
		return err
	}

	d.mu.RLock()
	handler, exists := d.handlers[msgType]
	d.mu.RUnlock()

	if !exists {
		logger.Get().DebugWith("ignoring message of unknown type", "clientID", clientID, "type", msgType)
		return nil
	}

	return handler.Handle(clientID, raw)
}

// HasHandler checks if a handler exists for the message type
func (d *Dispatcher) HasHandler(msgType protocol.MessageType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.handlers[msgType]
	return exists
}
