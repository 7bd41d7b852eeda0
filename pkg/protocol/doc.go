// Package protocol defines the message types and payload structures
// exchanged between the window-counter server and its browser clients.
package protocol
