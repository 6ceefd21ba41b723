package models

import "time"

// Setting is one row of the flat key/value configuration table. The table is
// pre-seeded with defaults by the schema migration and live-editable by the
// UI layer.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
