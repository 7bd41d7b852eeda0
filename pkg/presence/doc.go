// Package presence maintains the live registry of connected browser
// clients and their tab state.
//
// The package is organized around three types:
//
// Registry is the single point of shared mutable state: a mutex-guarded
// map from client ID to its presence record and the set of live channels
// bound to that ID. A record exists exactly as long as it has at least
// one live channel.
//
// Hub coordinates the registry with the outside world: it registers and
// removes channels, applies inbound state mutations, fans the full
// snapshot out to every open channel after each mutation, and routes
// location payloads to a single eligible client.
//
// Conn adapts a gorilla WebSocket connection to the Channel interface
// with a buffered, non-blocking send queue and a writer goroutine, so a
// slow peer never stalls delivery to the rest.
//
// All operations are safe for concurrent use from many connection
// handling goroutines. No lock is held across a channel send.
package presence
