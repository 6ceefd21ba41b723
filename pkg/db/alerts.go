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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/lanpulse/pkg/models"
)

const alertColumns = `
	id,
	device_id,
	alert_type,
	severity,
	title,
	message,
	metadata,
	acknowledged,
	acknowledged_by,
	acknowledged_at,
	is_resolved,
	resolved_at,
	created_at,
	updated_at`

const insertAlertSQL = `
INSERT INTO alerts (
	id,
	device_id,
	alert_type,
	severity,
	title,
	message,
	metadata,
	is_resolved,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,FALSE,$8,$8
)`

// InsertAlert opens a new alert row.
func (s *Store) InsertAlert(ctx context.Context, alert *models.Alert) error {
	metadata, err := marshalMetadata(alert.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, insertAlertSQL,
		alert.ID,
		alert.DeviceID,
		alert.AlertType,
		alert.Severity,
		alert.Title,
		alert.Message,
		metadata,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert %s alert: %w", alert.AlertType, err)
	}

	return nil
}

// GetOpenAlert returns the unresolved alert for (device, type), or
// ErrNotFound. deviceID nil matches system-wide alerts.
func (s *Store) GetOpenAlert(ctx context.Context, deviceID *int64, alertType models.AlertType) (*models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts WHERE alert_type = $1 AND NOT is_resolved`

	args := []any{alertType}

	if deviceID != nil {
		args = append(args, *deviceID)
		query += ` AND device_id = $2`
	} else {
		query += ` AND device_id IS NULL`
	}

	row := s.db.QueryRow(ctx, query, args...)

	return scanAlert(row)
}

// RefreshAlert advances updated_at and replaces message/metadata on an
// already-open alert instead of opening a duplicate.
func (s *Store) RefreshAlert(ctx context.Context, id, message string, metadata map[string]string, at time.Time) error {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
UPDATE alerts SET
	message = $2,
	metadata = COALESCE($3, metadata),
	updated_at = $4
WHERE id = $1`, id, message, meta, at)
	if err != nil {
		return fmt.Errorf("refresh alert %s: %w", id, err)
	}

	return nil
}

// ResolveAlert marks one alert resolved.
func (s *Store) ResolveAlert(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE alerts SET
	is_resolved = TRUE,
	resolved_at = $2,
	updated_at = $2
WHERE id = $1 AND NOT is_resolved`, id, at)
	if err != nil {
		return fmt.Errorf("resolve alert %s: %w", id, err)
	}

	return nil
}

// ResolveOpenAlert resolves the open alert for (device, type) if one exists
// and reports whether a row changed. Used for condition-cleared
// auto-resolution.
func (s *Store) ResolveOpenAlert(ctx context.Context, deviceID *int64, alertType models.AlertType, at time.Time) (bool, error) {
	query := `
UPDATE alerts SET
	is_resolved = TRUE,
	resolved_at = $2,
	updated_at = $2
WHERE alert_type = $1 AND NOT is_resolved`

	args := []any{alertType, at}

	if deviceID != nil {
		args = append(args, *deviceID)
		query += ` AND device_id = $3`
	} else {
		query += ` AND device_id IS NULL`
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("auto-resolve %s alert: %w", alertType, err)
	}

	return tag.RowsAffected() > 0, nil
}

// AcknowledgeAlert records a UI-originated acknowledgement.
func (s *Store) AcknowledgeAlert(ctx context.Context, id, who string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE alerts SET
	acknowledged = TRUE,
	acknowledged_by = $2,
	acknowledged_at = $3,
	updated_at = $3
WHERE id = $1`, id, who, at)
	if err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}

	return nil
}

// ListAlerts returns alerts, optionally only unresolved ones, newest first.
func (s *Store) ListAlerts(ctx context.Context, unresolvedOnly bool, limit int) ([]*models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts`
	if unresolvedOnly {
		query += ` WHERE NOT is_resolved`
	}

	if limit <= 0 {
		limit = 500
	}

	query += ` ORDER BY updated_at DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert

	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, nil
}

// DeleteResolvedAlertsBefore prunes resolved alerts older than cutoff.
// Unresolved alerts are never deleted here.
func (s *Store) DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM alerts WHERE is_resolved AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete resolved alerts before %s: %w", cutoff, err)
	}

	return tag.RowsAffected(), nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal alert metadata: %w", err)
	}

	return data, nil
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var (
		alert    models.Alert
		metadata []byte
	)

	err := row.Scan(
		&alert.ID,
		&alert.DeviceID,
		&alert.AlertType,
		&alert.Severity,
		&alert.Title,
		&alert.Message,
		&metadata,
		&alert.Acknowledged,
		&alert.AcknowledgedBy,
		&alert.AcknowledgedAt,
		&alert.IsResolved,
		&alert.ResolvedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal alert metadata: %w", err)
		}
	}

	return &alert, nil
}
