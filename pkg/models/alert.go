package models

import (
	"time"
)

// AlertType identifies the condition an alert tracks.
type AlertType string

const (
	AlertNewDevice  AlertType = "new_device"
	AlertOffline    AlertType = "offline"
	AlertWeakSignal AlertType = "weak_signal"
)

// Severity levels for alerts.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Alert is a condition instance. An open alert of the same (device, type) is
// refreshed rather than duplicated. DeviceID is nil for system-wide alerts.
type Alert struct {
	ID             string            `json:"id"`
	DeviceID       *int64            `json:"device_id,omitempty"`
	AlertType      AlertType         `json:"alert_type"`
	Severity       Severity          `json:"severity"`
	Title          string            `json:"title"`
	Message        string            `json:"message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Acknowledged   bool              `json:"acknowledged"`
	AcknowledgedBy string            `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
	IsResolved     bool              `json:"is_resolved"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
