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

const snapshotColumns = `
	id,
	device_id,
	sample_time,
	ip_address,
	interface_class,
	signal_dbm,
	tx_rate_kbps,
	rx_rate_kbps,
	is_online,
	raw`

const insertSnapshotSQL = `
INSERT INTO device_snapshots (
	device_id,
	sample_time,
	ip_address,
	interface_class,
	signal_dbm,
	tx_rate_kbps,
	rx_rate_kbps,
	is_online,
	raw
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
RETURNING id`

// InsertSnapshot writes one immutable observation row. Rows are never
// updated or deduplicated; callers control cadence.
func (s *Store) InsertSnapshot(ctx context.Context, snap *models.Snapshot) (int64, error) {
	var raw any
	if len(snap.Raw) > 0 {
		raw = []byte(snap.Raw)
	}

	var id int64

	err := s.db.QueryRow(ctx, insertSnapshotSQL,
		snap.DeviceID,
		snap.SampleTime,
		snap.IPAddress,
		snap.InterfaceClass,
		snap.SignalDBM,
		snap.TxRateKbps,
		snap.RxRateKbps,
		snap.IsOnline,
		raw,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot for device %d: %w", snap.DeviceID, err)
	}

	return id, nil
}

// GetLatestSnapshot returns the most recent snapshot for a device.
func (s *Store) GetLatestSnapshot(ctx context.Context, deviceID int64) (*models.Snapshot, error) {
	row := s.db.QueryRow(ctx, `SELECT`+snapshotColumns+`
FROM device_snapshots
WHERE device_id = $1
ORDER BY sample_time DESC
LIMIT 1`, deviceID)

	return scanSnapshot(row)
}

// ListSnapshots returns snapshots for a device within [from, to], newest
// first, capped at limit.
func (s *Store) ListSnapshots(ctx context.Context, deviceID int64, from, to time.Time, limit int) ([]*models.Snapshot, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.Query(ctx, `SELECT`+snapshotColumns+`
FROM device_snapshots
WHERE device_id = $1 AND sample_time BETWEEN $2 AND $3
ORDER BY sample_time DESC
LIMIT $4`, deviceID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	var snaps []*models.Snapshot

	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}

		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

// DeleteSnapshotsBefore prunes snapshots older than cutoff and reports how
// many rows were removed. Re-running on already-pruned data is a no-op.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM device_snapshots WHERE sample_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots before %s: %w", cutoff, err)
	}

	return tag.RowsAffected(), nil
}

func scanSnapshot(row pgx.Row) (*models.Snapshot, error) {
	var (
		snap models.Snapshot
		raw  []byte
	)

	err := row.Scan(
		&snap.ID,
		&snap.DeviceID,
		&snap.SampleTime,
		&snap.IPAddress,
		&snap.InterfaceClass,
		&snap.SignalDBM,
		&snap.TxRateKbps,
		&snap.RxRateKbps,
		&snap.IsOnline,
		&raw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}

	snap.Raw = raw

	return &snap, nil
}
