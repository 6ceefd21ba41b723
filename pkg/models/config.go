/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/lanpulse/pkg/logger"
)

var (
	errInvalidDuration    = errors.New("invalid duration")
	errDatabaseRequired   = errors.New("database configuration is required")
	errProviderRequired   = errors.New("polling provider configuration is required")
	errUnknownProvider    = errors.New("unknown polling provider type")
	errProviderHostNeeded = errors.New("polling provider host is required")
)

// Duration wraps time.Duration so JSON configs can use "30s" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DatabaseConfig holds PostgreSQL connection settings for the engine store.
type DatabaseConfig struct {
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	Database        string            `json:"database"`
	Username        string            `json:"username"`
	Password        string            `json:"password,omitempty"`
	SSLMode         string            `json:"ssl_mode,omitempty"`
	ApplicationName string            `json:"application_name,omitempty"`
	MaxConnections  int32             `json:"max_connections,omitempty"`
	MinConnections  int32             `json:"min_connections,omitempty"`
	MaxConnLifetime Duration          `json:"max_conn_lifetime,omitempty"`
	ConnectTimeout  Duration          `json:"connect_timeout,omitempty"`
	RuntimeParams   map[string]string `json:"runtime_params,omitempty"`
}

// Validate ensures the database configuration is usable.
func (c *DatabaseConfig) Validate() error {
	if c == nil || c.Host == "" || c.Database == "" {
		return errDatabaseRequired
	}

	return nil
}

// Polling provider selection values.
const (
	ProviderTypeSSH  = "ssh"
	ProviderTypeSNMP = "snmp"
)

// ProviderConfig selects and configures the router polling provider.
type ProviderConfig struct {
	Type    string      `json:"type"` // "ssh" or "snmp"
	Timeout Duration    `json:"timeout,omitempty"`
	SSH     *SSHConfig  `json:"ssh,omitempty"`
	SNMP    *SNMPConfig `json:"snmp,omitempty"`
}

// SSHConfig configures the SSH polling provider (OpenWrt-style routers).
type SSHConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port,omitempty"`
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	PrivateKeyFile string `json:"private_key_file,omitempty"`
	NeighborCmd    string `json:"neighbor_cmd,omitempty"`
	LeasesCmd      string `json:"leases_cmd,omitempty"`
}

// SNMPConfig configures the SNMP polling provider.
type SNMPConfig struct {
	Host      string `json:"host"`
	Port      uint16 `json:"port,omitempty"`
	Community string `json:"community,omitempty"`
	Retries   int    `json:"retries,omitempty"`
}

// Validate ensures exactly the selected provider is configured.
func (c *ProviderConfig) Validate() error {
	if c == nil {
		return errProviderRequired
	}

	switch c.Type {
	case ProviderTypeSSH:
		if c.SSH == nil || c.SSH.Host == "" {
			return errProviderHostNeeded
		}
	case ProviderTypeSNMP:
		if c.SNMP == nil || c.SNMP.Host == "" {
			return errProviderHostNeeded
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownProvider, c.Type)
	}

	return nil
}

// NATSConfig configures optional NATS connectivity for event publishing.
type NATSConfig struct {
	URL    string `json:"url"`
	Domain string `json:"domain,omitempty"`
}

// EventsConfig configures the CloudEvents publishing system. Disabled by
// default; the engine is fully functional without a broker.
type EventsConfig struct {
	Enabled    bool        `json:"enabled"`
	StreamName string      `json:"stream_name,omitempty"`
	Subjects   []string    `json:"subjects,omitempty"`
	NATS       *NATSConfig `json:"nats,omitempty"`
}

// Validate applies defaults and checks the events configuration.
func (c *EventsConfig) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	if c.NATS == nil || c.NATS.URL == "" {
		return errors.New("nats url is required when event publishing is enabled")
	}

	if c.StreamName == "" {
		c.StreamName = "lanpulse-events"
	}

	if len(c.Subjects) == 0 {
		c.Subjects = []string{"events.device.*", "events.alert.*"}
	}

	return nil
}

// EngineConfig is the top-level configuration for the collection engine
// process. Runtime thresholds (offline window, alert toggles, retention
// horizons) live in the settings table, not here.
type EngineConfig struct {
	PollInterval      Duration        `json:"poll_interval"`
	CorrelateInterval Duration        `json:"correlate_interval,omitempty"`
	Database          *DatabaseConfig `json:"database"`
	Provider          *ProviderConfig `json:"provider"`
	Events            *EventsConfig   `json:"events,omitempty"`
	Logging           *logger.Config  `json:"logging,omitempty"`
}

// Validate checks the engine configuration and applies defaults.
func (c *EngineConfig) Validate() error {
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(2 * time.Minute)
	}

	if c.CorrelateInterval <= 0 {
		c.CorrelateInterval = Duration(5 * time.Minute)
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if err := c.Provider.Validate(); err != nil {
		return err
	}

	if c.Events != nil {
		if err := c.Events.Validate(); err != nil {
			return err
		}
	}

	return nil
}
