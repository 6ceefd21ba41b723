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
	"fmt"
	"time"

	"github.com/carverauto/lanpulse/pkg/models"
)

const syslogColumns = `
	id,
	received_at,
	source_host,
	message,
	raw_message,
	remote_endpoint`

// InsertSyslogMessage persists one already-parsed syslog row. The transport
// and wire-format parsing live with the syslog source collaborator.
func (s *Store) InsertSyslogMessage(ctx context.Context, msg *models.SyslogMessage) (int64, error) {
	var id int64

	err := s.db.QueryRow(ctx, `
INSERT INTO syslog_messages (
	received_at,
	source_host,
	message,
	raw_message,
	remote_endpoint
) VALUES (
	$1,$2,$3,$4,$5
)
RETURNING id`,
		msg.ReceivedAt,
		msg.SourceHost,
		msg.Message,
		msg.RawMessage,
		msg.RemoteEndpoint,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert syslog message: %w", err)
	}

	return id, nil
}

// ListUnlinkedSyslogSince returns syslog rows received after since that have
// no device links yet, oldest first.
func (s *Store) ListUnlinkedSyslogSince(ctx context.Context, since time.Time, limit int) ([]*models.SyslogMessage, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.Query(ctx, `SELECT`+syslogColumns+`
FROM syslog_messages m
WHERE m.received_at >= $1
  AND NOT EXISTS (
	SELECT 1 FROM syslog_device_links l WHERE l.syslog_id = m.id
  )
ORDER BY m.received_at ASC
LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list unlinked syslog: %w", err)
	}
	defer rows.Close()

	var msgs []*models.SyslogMessage

	for rows.Next() {
		var msg models.SyslogMessage

		if err := rows.Scan(
			&msg.ID,
			&msg.ReceivedAt,
			&msg.SourceHost,
			&msg.Message,
			&msg.RawMessage,
			&msg.RemoteEndpoint,
		); err != nil {
			return nil, fmt.Errorf("scan syslog message: %w", err)
		}

		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate syslog messages: %w", err)
	}

	return msgs, nil
}

// InsertSyslogLink records one accepted correlation edge. Duplicate
// (syslog, device) pairs are ignored so correlation reruns stay idempotent.
func (s *Store) InsertSyslogLink(ctx context.Context, link *models.SyslogDeviceLink) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO syslog_device_links (
	syslog_id,
	device_id,
	match_method,
	confidence,
	created_at
) VALUES (
	$1,$2,$3,$4,$5
)
ON CONFLICT (syslog_id, device_id) DO NOTHING`,
		link.SyslogID,
		link.DeviceID,
		link.MatchMethod,
		link.Confidence,
		link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert syslog link %d->%d: %w", link.SyslogID, link.DeviceID, err)
	}

	return nil
}

// DeviceSyslogEntry pairs a syslog row with its correlation score for the
// per-device log view the UI consumes.
type DeviceSyslogEntry struct {
	Message     models.SyslogMessage `json:"message"`
	MatchMethod string               `json:"match_method"`
	Confidence  float64              `json:"confidence"`
}

// ListDeviceSyslog returns the correlated syslog rows for a device, newest
// first, including the confidence score so consumers can filter.
func (s *Store) ListDeviceSyslog(ctx context.Context, deviceID int64, limit int) ([]*DeviceSyslogEntry, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(ctx, `
SELECT
	m.id,
	m.received_at,
	m.source_host,
	m.message,
	m.raw_message,
	m.remote_endpoint,
	l.match_method,
	l.confidence
FROM syslog_device_links l
JOIN syslog_messages m ON m.id = l.syslog_id
WHERE l.device_id = $1
ORDER BY m.received_at DESC
LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list device %d syslog: %w", deviceID, err)
	}
	defer rows.Close()

	var entries []*DeviceSyslogEntry

	for rows.Next() {
		var entry DeviceSyslogEntry

		if err := rows.Scan(
			&entry.Message.ID,
			&entry.Message.ReceivedAt,
			&entry.Message.SourceHost,
			&entry.Message.Message,
			&entry.Message.RawMessage,
			&entry.Message.RemoteEndpoint,
			&entry.MatchMethod,
			&entry.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scan device syslog entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device syslog: %w", err)
	}

	return entries, nil
}

// DeleteUnlinkedSyslogBefore prunes stale syslog rows that never correlated
// to a device. Linked rows ride on their links' cascade from device deletes.
func (s *Store) DeleteUnlinkedSyslogBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
DELETE FROM syslog_messages m
WHERE m.received_at < $1
  AND NOT EXISTS (
	SELECT 1 FROM syslog_device_links l WHERE l.syslog_id = m.id
  )`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete unlinked syslog before %s: %w", cutoff, err)
	}

	return tag.RowsAffected(), nil
}
