package models

import (
	"time"
)

// SyslogMessage is one already-parsed syslog row as delivered by the syslog
// source collaborator. The engine never touches wire format.
type SyslogMessage struct {
	ID             int64     `json:"id"`
	ReceivedAt     time.Time `json:"received_at"`
	SourceHost     string    `json:"source_host,omitempty"`
	Message        string    `json:"message"`
	RawMessage     string    `json:"raw_message,omitempty"`
	RemoteEndpoint string    `json:"remote_endpoint,omitempty"`
}

// Match methods for syslog-device correlation, in descending confidence
// order.
const (
	MatchMethodMAC      = "mac"
	MatchMethodIP       = "ip"
	MatchMethodHostname = "hostname"
	MatchMethodPattern  = "pattern"
)

// SyslogDeviceLink is a confidence-scored correlation edge between a syslog
// row and a device. Append-only; a row may link to zero or more devices.
type SyslogDeviceLink struct {
	ID          int64     `json:"id"`
	SyslogID    int64     `json:"syslog_id"`
	DeviceID    int64     `json:"device_id"`
	MatchMethod string    `json:"match_method"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}
