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

const insertDeviceEventSQL = `
INSERT INTO device_events (
	device_id,
	event_type,
	occurred_at,
	previous_state,
	new_state,
	details
) VALUES (
	$1,$2,$3,$4,$5,$6
)
RETURNING id`

// InsertDeviceEvent appends one transition record. Events are immutable.
func (s *Store) InsertDeviceEvent(ctx context.Context, event *models.DeviceEvent) (int64, error) {
	var details any
	if len(event.Details) > 0 {
		details = []byte(event.Details)
	}

	var id int64

	err := s.db.QueryRow(ctx, insertDeviceEventSQL,
		event.DeviceID,
		event.EventType,
		event.OccurredAt,
		event.PreviousState,
		event.NewState,
		details,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert %s event for device %d: %w", event.EventType, event.DeviceID, err)
	}

	return id, nil
}

// EventFilter narrows a device event listing. Zero values are ignored.
type EventFilter struct {
	DeviceID  int64
	EventType models.EventType
	From      time.Time
	To        time.Time
	Limit     int
}

// ListDeviceEvents returns events matching the filter, newest first.
func (s *Store) ListDeviceEvents(ctx context.Context, filter EventFilter) ([]*models.DeviceEvent, error) {
	query := `
SELECT
	id,
	device_id,
	event_type,
	occurred_at,
	previous_state,
	new_state,
	details
FROM device_events
WHERE 1=1`

	args := make([]any, 0, 5)

	if filter.DeviceID != 0 {
		args = append(args, filter.DeviceID)
		query += fmt.Sprintf(" AND device_id = $%d", len(args))
	}

	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}

	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list device events: %w", err)
	}
	defer rows.Close()

	var events []*models.DeviceEvent

	for rows.Next() {
		var (
			event   models.DeviceEvent
			details []byte
		)

		if err := rows.Scan(
			&event.ID,
			&event.DeviceID,
			&event.EventType,
			&event.OccurredAt,
			&event.PreviousState,
			&event.NewState,
			&details,
		); err != nil {
			return nil, fmt.Errorf("scan device event: %w", err)
		}

		event.Details = details
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device events: %w", err)
	}

	return events, nil
}

// DeleteEventsBefore prunes device events older than cutoff.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM device_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete events before %s: %w", cutoff, err)
	}

	return tag.RowsAffected(), nil
}
