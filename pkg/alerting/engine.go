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

// Package alerting evaluates device and system conditions against the
// thresholds in the settings table and opens, refreshes, or resolves alert
// rows. An open alert of the same (device, type) is never duplicated.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/settings"
)

// TagCritical escalates offline alerts for devices carrying it.
const TagCritical = "critical"

var errUnknownCondition = errors.New("unknown alert condition")

// Condition describes one evaluation request.
type Condition struct {
	Type      models.AlertType
	Device    *models.Device // nil for system-wide conditions
	SignalDBM *float64       // weak-signal only
	Timestamp time.Time
}

// Engine applies per-condition policy. Each condition type is independently
// toggleable via settings.
type Engine struct {
	store    AlertStore
	settings Settings
	logger   logger.Logger

	opened   []*models.Alert
	resolved []*models.Alert
}

// NewEngine creates an alert engine.
func NewEngine(store AlertStore, cfg Settings, log logger.Logger) *Engine {
	return &Engine{
		store:    store,
		settings: cfg,
		logger:   log,
	}
}

// Evaluate applies the policy for one condition and returns the upserted
// alert, or nil when the condition does not fire.
func (e *Engine) Evaluate(ctx context.Context, cond Condition) (*models.Alert, error) {
	switch cond.Type {
	case models.AlertNewDevice:
		return e.evaluateNewDevice(ctx, cond)
	case models.AlertOffline:
		return e.evaluateOffline(ctx, cond)
	case models.AlertWeakSignal:
		return e.evaluateWeakSignal(ctx, cond)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownCondition, cond.Type)
	}
}

func (e *Engine) evaluateNewDevice(ctx context.Context, cond Condition) (*models.Alert, error) {
	if !e.settings.Bool(ctx, settings.KeyNewDeviceAlertEnabled, true) {
		return nil, nil
	}

	device := cond.Device

	return e.upsert(ctx, &device.ID, models.AlertNewDevice, models.SeverityMedium,
		fmt.Sprintf("New device on network: %s", deviceLabel(device)),
		fmt.Sprintf("Device %s joined the network with IP %s", device.MAC, device.PrimaryIP),
		map[string]string{
			"mac": device.MAC,
			"ip":  device.PrimaryIP,
		},
		cond.Timestamp)
}

func (e *Engine) evaluateOffline(ctx context.Context, cond Condition) (*models.Alert, error) {
	if !e.settings.Bool(ctx, settings.KeyOfflineAlertEnabled, true) {
		return nil, nil
	}

	device := cond.Device

	severity := models.SeverityLow
	if device.HasTag(TagCritical) {
		severity = models.SeverityMedium
	}

	return e.upsert(ctx, &device.ID, models.AlertOffline, severity,
		fmt.Sprintf("Device offline: %s", deviceLabel(device)),
		fmt.Sprintf("Device %s has not been seen since %s", device.MAC, device.LastSeen.Format(time.RFC3339)),
		map[string]string{
			"mac":       device.MAC,
			"last_seen": device.LastSeen.Format(time.RFC3339),
		},
		cond.Timestamp)
}

// evaluateWeakSignal opens the alert when the signal drops below the
// threshold and resolves it only after the signal recovers above threshold
// plus margin. Readings inside the hysteresis band change nothing, which
// keeps a flapping link from reopening the alert every cycle.
func (e *Engine) evaluateWeakSignal(ctx context.Context, cond Condition) (*models.Alert, error) {
	if cond.SignalDBM == nil {
		return nil, nil
	}

	if !e.settings.Bool(ctx, settings.KeyWeakSignalAlertEnabled, true) {
		return nil, nil
	}

	threshold := e.settings.Float(ctx, settings.KeyWeakSignalThresholdDBM, settings.DefaultWeakSignalThresholdDBM)
	margin := e.settings.Float(ctx, settings.KeyWeakSignalRecoveryMargin, settings.DefaultWeakSignalRecoveryMargin)
	signal := *cond.SignalDBM
	device := cond.Device

	switch {
	case signal < threshold:
		return e.upsert(ctx, &device.ID, models.AlertWeakSignal, models.SeverityLow,
			fmt.Sprintf("Weak signal: %s", deviceLabel(device)),
			fmt.Sprintf("Device %s signal at %.1f dBm (threshold %.1f)", device.MAC, signal, threshold),
			map[string]string{
				"mac":        device.MAC,
				"signal_dbm": strconv.FormatFloat(signal, 'f', 1, 64),
			},
			cond.Timestamp)
	case signal >= threshold+margin:
		if _, err := e.resolveOpen(ctx, &device.ID, models.AlertWeakSignal, cond.Timestamp); err != nil {
			return nil, err
		}

		return nil, nil
	default:
		// Inside the hysteresis band.
		return nil, nil
	}
}

// ResolveCondition auto-resolves the open alert for (device, type) when its
// triggering condition clears; e.g. a device coming back online resolves its
// offline alert. Reports whether anything changed.
func (e *Engine) ResolveCondition(ctx context.Context, deviceID *int64, alertType models.AlertType, at time.Time) (bool, error) {
	alert, err := e.resolveOpen(ctx, deviceID, alertType, at)
	if err != nil {
		return false, err
	}

	if alert == nil {
		return false, nil
	}

	e.logger.Debug().
		Str("alert_type", string(alertType)).
		Msg("Alert auto-resolved")

	return true, nil
}

// Transitions returns the alerts opened and auto-resolved through this
// engine instance. The collection cycle builds one engine per transaction,
// so this is exactly the cycle's alert delta for post-commit publishing.
// Refreshes of already-open alerts are not transitions and do not appear.
func (e *Engine) Transitions() (opened, resolved []*models.Alert) {
	return e.opened, e.resolved
}

// resolveOpen resolves the open (device, type) alert if one exists and
// records it for Transitions. Returns nil when there was nothing open.
func (e *Engine) resolveOpen(ctx context.Context, deviceID *int64, alertType models.AlertType, at time.Time) (*models.Alert, error) {
	existing, err := e.store.GetOpenAlert(ctx, deviceID, alertType)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if _, err := e.store.ResolveOpenAlert(ctx, deviceID, alertType, at); err != nil {
		return nil, err
	}

	existing.IsResolved = true
	resolvedAt := at
	existing.ResolvedAt = &resolvedAt

	e.resolved = append(e.resolved, existing)

	return existing, nil
}

// Acknowledge records a UI-originated acknowledgement.
func (e *Engine) Acknowledge(ctx context.Context, alertID, who string, at time.Time) error {
	return e.store.AcknowledgeAlert(ctx, alertID, who, at)
}

// Resolve marks an alert resolved on behalf of the UI layer.
func (e *Engine) Resolve(ctx context.Context, alertID string, at time.Time) error {
	return e.store.ResolveAlert(ctx, alertID, at)
}

// upsert refreshes the open (device, type) alert if one exists, otherwise
// opens a new one.
func (e *Engine) upsert(
	ctx context.Context,
	deviceID *int64,
	alertType models.AlertType,
	severity models.Severity,
	title, message string,
	metadata map[string]string,
	at time.Time,
) (*models.Alert, error) {
	existing, err := e.store.GetOpenAlert(ctx, deviceID, alertType)

	switch {
	case err == nil:
		if err := e.store.RefreshAlert(ctx, existing.ID, message, metadata, at); err != nil {
			return nil, err
		}

		existing.Message = message
		existing.UpdatedAt = at

		return existing, nil
	case errors.Is(err, db.ErrNotFound):
		alert := &models.Alert{
			ID:        uuid.New().String(),
			DeviceID:  deviceID,
			AlertType: alertType,
			Severity:  severity,
			Title:     title,
			Message:   message,
			Metadata:  metadata,
			CreatedAt: at,
			UpdatedAt: at,
		}

		if err := e.store.InsertAlert(ctx, alert); err != nil {
			return nil, err
		}

		e.opened = append(e.opened, alert)

		e.logger.Info().
			Str("alert_type", string(alertType)).
			Str("severity", string(severity)).
			Str("title", title).
			Msg("Alert opened")

		return alert, nil
	default:
		return nil, err
	}
}

func deviceLabel(device *models.Device) string {
	switch {
	case device.Nickname != "":
		return device.Nickname
	case device.Hostname != "":
		return device.Hostname
	default:
		return device.MAC
	}
}
