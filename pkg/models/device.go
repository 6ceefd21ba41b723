package models

import (
	"encoding/json"
	"time"
)

// Device represents a network endpoint identified by MAC address. The MAC is
// the only stable identifier; IP and hostname churn with DHCP.
type Device struct {
	ID             int64     `json:"id"`
	MAC            string    `json:"mac"`
	PrimaryIP      string    `json:"primary_ip,omitempty"`
	Hostname       string    `json:"hostname,omitempty"`
	Nickname       string    `json:"nickname,omitempty"`
	Location       string    `json:"location,omitempty"`
	Manufacturer   string    `json:"manufacturer,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	NetworkSegment string    `json:"network_segment,omitempty"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	IsActive       bool      `json:"is_active"`
}

// HasTag reports whether the device carries the given tag.
func (d *Device) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// Snapshot is one immutable observation of a device at a point in time.
// Absence of a recent snapshot is itself the offline signal; no snapshot is
// written for devices the provider does not report in a cycle.
type Snapshot struct {
	ID             int64           `json:"id"`
	DeviceID       int64           `json:"device_id"`
	SampleTime     time.Time       `json:"sample_time"`
	IPAddress      string          `json:"ip_address,omitempty"`
	InterfaceClass string          `json:"interface_class,omitempty"`
	SignalDBM      *float64        `json:"signal_dbm,omitempty"`
	TxRateKbps     *int64          `json:"tx_rate_kbps,omitempty"`
	RxRateKbps     *int64          `json:"rx_rate_kbps,omitempty"`
	IsOnline       bool            `json:"is_online"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// RawClient is a normalized client record from a polling provider. MAC is
// required; everything else is best-effort.
type RawClient struct {
	MAC          string          `json:"mac"`
	IP           string          `json:"ip,omitempty"`
	Hostname     string          `json:"hostname,omitempty"`
	Interface    string          `json:"interface,omitempty"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	SignalDBM    *float64        `json:"signal_dbm,omitempty"`
	TxRateKbps   *int64          `json:"tx_rate_kbps,omitempty"`
	RxRateKbps   *int64          `json:"rx_rate_kbps,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}
