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

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/lanpulse/pkg/models"
)

const deviceColumns = `
	id,
	mac,
	primary_ip,
	hostname,
	nickname,
	location,
	manufacturer,
	tags,
	network_segment,
	first_seen,
	last_seen,
	is_active`

const selectDeviceSQL = `SELECT` + deviceColumns + ` FROM devices`

const insertDeviceSQL = `
INSERT INTO devices (
	mac,
	primary_ip,
	hostname,
	nickname,
	location,
	manufacturer,
	tags,
	network_segment,
	first_seen,
	last_seen,
	is_active
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
RETURNING id`

const updateDeviceSeenSQL = `
UPDATE devices SET
	primary_ip = CASE WHEN $2 <> '' THEN $2 ELSE primary_ip END,
	hostname = CASE WHEN $3 <> '' THEN $3 ELSE hostname END,
	manufacturer = CASE WHEN $4 <> '' THEN $4 ELSE manufacturer END,
	last_seen = $5
WHERE id = $1`

// GetDevice fetches one device by ID.
func (s *Store) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	row := s.db.QueryRow(ctx, selectDeviceSQL+` WHERE id = $1`, id)
	return scanDevice(row)
}

// GetDeviceByMAC fetches one device by canonical MAC.
func (s *Store) GetDeviceByMAC(ctx context.Context, mac string) (*models.Device, error) {
	row := s.db.QueryRow(ctx, selectDeviceSQL+` WHERE mac = $1`, mac)
	return scanDevice(row)
}

// CreateDevice inserts a new device row and returns its ID.
func (s *Store) CreateDevice(ctx context.Context, d *models.Device) (int64, error) {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	var id int64

	err := s.db.QueryRow(ctx, insertDeviceSQL,
		d.MAC,
		d.PrimaryIP,
		d.Hostname,
		d.Nickname,
		d.Location,
		d.Manufacturer,
		tags,
		d.NetworkSegment,
		d.FirstSeen,
		d.LastSeen,
		d.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create device %s: %w", d.MAC, err)
	}

	return id, nil
}

// UpdateDeviceSeen refreshes last_seen and the churny identity attributes.
// Empty values leave the existing column untouched. The is_active flag is
// owned by the activity state engine and is deliberately not written here.
func (s *Store) UpdateDeviceSeen(ctx context.Context, id int64, ip, hostname, manufacturer string, seenAt time.Time) error {
	_, err := s.db.Exec(ctx, updateDeviceSeenSQL, id, ip, hostname, manufacturer, seenAt)
	if err != nil {
		return fmt.Errorf("update device %d seen: %w", id, err)
	}

	return nil
}

// SetDeviceActive flips the activity flag for a device.
func (s *Store) SetDeviceActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.Exec(ctx, `UPDATE devices SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set device %d active=%t: %w", id, active, err)
	}

	return nil
}

// ListDevices returns all devices, optionally filtered by activity state.
func (s *Store) ListDevices(ctx context.Context, activeOnly bool) ([]*models.Device, error) {
	query := selectDeviceSQL
	if activeOnly {
		query += ` WHERE is_active`
	}

	query += ` ORDER BY last_seen DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	return gatherDevices(rows)
}

// ListActiveDevicesSeenBefore returns active devices whose last observation
// is older than cutoff; these are the offline-transition candidates.
func (s *Store) ListActiveDevicesSeenBefore(ctx context.Context, cutoff time.Time) ([]*models.Device, error) {
	rows, err := s.db.Query(ctx, selectDeviceSQL+` WHERE is_active AND last_seen < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list active devices before cutoff: %w", err)
	}
	defer rows.Close()

	return gatherDevices(rows)
}

// ListInactiveDevicesSeenSince returns inactive devices with a recent
// observation; these are the online-transition candidates.
func (s *Store) ListInactiveDevicesSeenSince(ctx context.Context, cutoff time.Time) ([]*models.Device, error) {
	rows, err := s.db.Query(ctx, selectDeviceSQL+` WHERE NOT is_active AND last_seen >= $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list inactive devices since cutoff: %w", err)
	}
	defer rows.Close()

	return gatherDevices(rows)
}

// DeviceMetadataUpdate carries the identity-preserving fields the UI layer
// may edit. Nil pointers leave the column untouched; MAC is never mutable.
type DeviceMetadataUpdate struct {
	Nickname       *string
	Location       *string
	NetworkSegment *string
	Tags           []string
}

// UpdateDeviceMetadata applies a UI-originated metadata edit.
func (s *Store) UpdateDeviceMetadata(ctx context.Context, id int64, update DeviceMetadataUpdate) error {
	_, err := s.db.Exec(ctx, `
UPDATE devices SET
	nickname = COALESCE($2, nickname),
	location = COALESCE($3, location),
	network_segment = COALESCE($4, network_segment),
	tags = COALESCE($5, tags)
WHERE id = $1`,
		id, update.Nickname, update.Location, update.NetworkSegment, update.Tags)
	if err != nil {
		return fmt.Errorf("update device %d metadata: %w", id, err)
	}

	return nil
}

// DeleteDevice removes a device; the schema cascades to snapshots, events,
// alerts and syslog links. Only explicit manual action reaches this.
func (s *Store) DeleteDevice(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete device %d: %w", id, err)
	}

	return nil
}

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device

	err := row.Scan(
		&d.ID,
		&d.MAC,
		&d.PrimaryIP,
		&d.Hostname,
		&d.Nickname,
		&d.Location,
		&d.Manufacturer,
		&d.Tags,
		&d.NetworkSegment,
		&d.FirstSeen,
		&d.LastSeen,
		&d.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}

	return &d, nil
}

func gatherDevices(rows pgx.Rows) ([]*models.Device, error) {
	var devices []*models.Device

	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}

	return devices, nil
}
