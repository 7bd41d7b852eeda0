/*
Package messaging routes inbound WebSocket messages to their handlers.

The Dispatcher maps message types to Handler implementations. Unknown
message types are ignored without error; a handler that fails to parse
its payload returns an error and the message is dropped with the
connection left open.

Built-in handlers:
  - UpdateStateHandler: full replacement of a client's tab state
  - VisibilityChangeHandler: partial visibility transition

Usage:

	dispatcher := messaging.NewDispatcher()
	dispatcher.Register(messaging.NewUpdateStateHandler(hub))
	dispatcher.Register(messaging.NewVisibilityChangeHandler(hub))

	// For each raw message read from a connection:
	err := dispatcher.Dispatch(clientID, raw)
*/
package messaging
