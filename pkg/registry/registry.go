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

// Package registry maintains the canonical MAC-keyed device inventory. The
// MAC is the identity anchor; IP and hostname are treated as churn.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
)

// ErrInvalidMAC marks a client record the registry refuses to anchor an
// identity on. The registry never fabricates identity from IP alone, since
// IPs are reassigned by DHCP.
var ErrInvalidMAC = errors.New("invalid or missing MAC address")

// UpsertResult reports what the registry and recorder did with one raw
// client record.
type UpsertResult struct {
	DeviceID          int64
	MAC               string
	Created           bool
	IPChanged         bool
	PreviousIP        string
	NewIP             string
	InterfaceChanged  bool
	PreviousInterface string
	NewInterface      string
}

// Registry resolves raw client records to durable device rows.
type Registry struct {
	store  DeviceStore
	logger logger.Logger
}

// New creates a Registry over the given store.
func New(store DeviceStore, log logger.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: log,
	}
}

// UpsertFromSnapshot creates or refreshes the device row for one raw client
// record. An unseen MAC creates a device with first_seen = last_seen = now
// and is_active = true. A known MAC refreshes last_seen and the churny
// attributes; an IP change is flagged back to the caller so the activity
// state engine can record it.
func (r *Registry) UpsertFromSnapshot(ctx context.Context, client *models.RawClient, now time.Time) (*UpsertResult, error) {
	mac, err := CanonicalMAC(client.MAC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, client.MAC)
	}

	device, err := r.store.GetDeviceByMAC(ctx, mac)

	switch {
	case err == nil:
		return r.refresh(ctx, device, client, now)
	case errors.Is(err, db.ErrNotFound):
		return r.create(ctx, mac, client, now)
	default:
		return nil, fmt.Errorf("lookup device %s: %w", mac, err)
	}
}

func (r *Registry) create(ctx context.Context, mac string, client *models.RawClient, now time.Time) (*UpsertResult, error) {
	device := &models.Device{
		MAC:          mac,
		PrimaryIP:    client.IP,
		Hostname:     client.Hostname,
		Manufacturer: client.Manufacturer,
		FirstSeen:    now,
		LastSeen:     now,
		IsActive:     true,
	}

	id, err := r.store.CreateDevice(ctx, device)
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("mac", mac).
		Str("ip", client.IP).
		Str("hostname", client.Hostname).
		Msg("New device registered")

	return &UpsertResult{
		DeviceID: id,
		MAC:      mac,
		Created:  true,
		NewIP:    client.IP,
	}, nil
}

func (r *Registry) refresh(ctx context.Context, device *models.Device, client *models.RawClient, now time.Time) (*UpsertResult, error) {
	result := &UpsertResult{
		DeviceID: device.ID,
		MAC:      device.MAC,
		NewIP:    device.PrimaryIP,
	}

	if client.IP != "" && client.IP != device.PrimaryIP {
		result.IPChanged = device.PrimaryIP != ""
		result.PreviousIP = device.PrimaryIP
		result.NewIP = client.IP
	}

	if err := r.store.UpdateDeviceSeen(ctx, device.ID, client.IP, client.Hostname, client.Manufacturer, now); err != nil {
		return nil, err
	}

	return result, nil
}

// CanonicalMAC normalizes a MAC address to uppercase colon-separated form.
// Only 48-bit addresses are accepted.
func CanonicalMAC(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidMAC
	}

	hw, err := net.ParseMAC(trimmed)
	if err != nil {
		return "", ErrInvalidMAC
	}

	if len(hw) != 6 {
		return "", ErrInvalidMAC
	}

	return strings.ToUpper(hw.String()), nil
}

