package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Connection lifecycle events
	EventStateChanged     EventType = "state_changed"
	EventStatus           EventType = "status"
	EventConnectionFailed EventType = "connection_failed"

	// Session membership events
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
)

// Event is the base structure for all observer notifications
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// StateChangedPayload contains data for state changed events
type StateChangedPayload struct {
	Previous ConnectionState
	Current  ConnectionState
}

// StatusPayload carries a human-readable progress string
type StatusPayload struct {
	Message string
}

// ConnectionFailedPayload carries the single human-readable failure reason
type ConnectionFailedPayload struct {
	Reason string
}

// PlayerPayload contains data for player joined/left events, keyed by the
// transport's numeric participant id
type PlayerPayload struct {
	NetworkID uint64
}
