package errors

import "errors"

// Registry errors
var (
	// ErrClientNotFound is returned when no record exists for a client ID
	ErrClientNotFound = errors.New("client not found")

	// ErrChannelClosed is returned when sending on a closed channel
	ErrChannelClosed = errors.New("channel closed")

	// ErrSendBufferFull is returned when a channel's outbound buffer is full
	ErrSendBufferFull = errors.New("send buffer full")
)

// Message and protocol errors
var (
	// ErrInvalidMessage is returned when a message cannot be parsed
	ErrInvalidMessage = errors.New("invalid message")

	// ErrMissingClientID is returned when a connection request carries no client ID
	ErrMissingClientID = errors.New("client ID is required")
)

// Storage errors
var (
	// ErrStorageNotInitialized is returned when storage is not initialized
	ErrStorageNotInitialized = errors.New("storage not initialized")

	// ErrDatabaseConnection is returned when database connection fails
	ErrDatabaseConnection = errors.New("database connection failed")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
