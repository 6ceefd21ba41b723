package models

import (
	"encoding/json"
	"time"
)

// EventType classifies a device state transition.
type EventType string

const (
	EventConnect         EventType = "connect"
	EventDisconnect      EventType = "disconnect"
	EventIPChange        EventType = "ip_change"
	EventInterfaceChange EventType = "interface_change"
	EventStateChange     EventType = "state_change"
)

// Device activity states recorded on transition events.
const (
	StateOnline  = "online"
	StateOffline = "offline"
	StateUnknown = "unknown"
)

// DeviceEvent is an append-only transition record produced by the activity
// state engine. Events are never mutated after insert.
type DeviceEvent struct {
	ID            int64           `json:"id"`
	DeviceID      int64           `json:"device_id"`
	EventType     EventType       `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PreviousState string          `json:"previous_state,omitempty"`
	NewState      string          `json:"new_state,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}
