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

// Package activity derives online/offline state from observation recency.
// The derivation is level-triggered: each sweep compares last_seen against
// the inactivity threshold and reconciles is_active toward the truth, so a
// missed sweep heals on the next one and re-running a sweep is a no-op.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/lanpulse/pkg/alerting"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/registry"
	"github.com/carverauto/lanpulse/pkg/settings"
)

// Observation pairs one raw client record with what the registry did with it.
type Observation struct {
	Client *models.RawClient
	Result *registry.UpsertResult
}

// SweepStats reports the transitions one sweep produced, so the caller can
// publish them after the surrounding transaction commits.
type SweepStats struct {
	WentOffline []*models.Device
	CameOnline  []*models.Device
}

// Engine owns the is_active flag on device rows. Nothing else writes it;
// that is what lets the sweep detect each transition exactly once.
type Engine struct {
	devices  DeviceStore
	events   EventStore
	alerts   AlertEngine
	settings Settings
	logger   logger.Logger
}

// NewEngine creates an activity engine over the given stores.
func NewEngine(devices DeviceStore, events EventStore, alerts AlertEngine, cfg Settings, log logger.Logger) *Engine {
	return &Engine{
		devices:  devices,
		events:   events,
		alerts:   alerts,
		settings: cfg,
		logger:   log,
	}
}

// ProcessObservations records per-observation transitions: ip_change and
// interface_change events, new-device alerts, and weak-signal evaluation.
// A first-ever observation emits no connect event; the new-device alert is
// the signal for that case, and the device is created already active.
func (e *Engine) ProcessObservations(ctx context.Context, observations []Observation, now time.Time) error {
	for _, obs := range observations {
		if err := e.processOne(ctx, obs, now); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) processOne(ctx context.Context, obs Observation, now time.Time) error {
	result := obs.Result

	if result.IPChanged {
		if err := e.recordEvent(ctx, result.DeviceID, models.EventIPChange, now, "", "", map[string]string{
			"previous_ip": result.PreviousIP,
			"new_ip":      result.NewIP,
		}); err != nil {
			return err
		}
	}

	if result.InterfaceChanged {
		if err := e.recordEvent(ctx, result.DeviceID, models.EventInterfaceChange, now, "", "", map[string]string{
			"previous_interface": result.PreviousInterface,
			"new_interface":      result.NewInterface,
		}); err != nil {
			return err
		}
	}

	if !result.Created && obs.Client.SignalDBM == nil {
		return nil
	}

	device, err := e.devices.GetDevice(ctx, result.DeviceID)
	if err != nil {
		return fmt.Errorf("load device %d for alert evaluation: %w", result.DeviceID, err)
	}

	if result.Created {
		if _, err := e.alerts.Evaluate(ctx, alerting.Condition{
			Type:      models.AlertNewDevice,
			Device:    device,
			Timestamp: now,
		}); err != nil {
			return err
		}
	}

	if obs.Client.SignalDBM != nil {
		if _, err := e.alerts.Evaluate(ctx, alerting.Condition{
			Type:      models.AlertWeakSignal,
			Device:    device,
			SignalDBM: obs.Client.SignalDBM,
			Timestamp: now,
		}); err != nil {
			return err
		}
	}

	return nil
}

// Sweep reconciles every device's is_active flag against the inactivity
// threshold. Active devices not seen within the threshold go offline with a
// disconnect event and an offline alert; inactive devices seen recently come
// back online with a connect event and their offline alert auto-resolved.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (*SweepStats, error) {
	threshold := e.settings.Minutes(ctx, settings.KeyInactiveThresholdMinutes, settings.DefaultInactiveThresholdMinutes)
	cutoff := now.Add(-threshold)
	stats := &SweepStats{}

	stale, err := e.devices.ListActiveDevicesSeenBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep offline candidates: %w", err)
	}

	for _, device := range stale {
		if err := e.markOffline(ctx, device, now); err != nil {
			return nil, err
		}

		device.IsActive = false
		stats.WentOffline = append(stats.WentOffline, device)
	}

	fresh, err := e.devices.ListInactiveDevicesSeenSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweep online candidates: %w", err)
	}

	for _, device := range fresh {
		if err := e.markOnline(ctx, device, now); err != nil {
			return nil, err
		}

		device.IsActive = true
		stats.CameOnline = append(stats.CameOnline, device)
	}

	if len(stats.WentOffline) > 0 || len(stats.CameOnline) > 0 {
		e.logger.Info().
			Int("went_offline", len(stats.WentOffline)).
			Int("came_online", len(stats.CameOnline)).
			Dur("threshold", threshold).
			Msg("Activity sweep applied transitions")
	}

	return stats, nil
}

func (e *Engine) markOffline(ctx context.Context, device *models.Device, now time.Time) error {
	if err := e.devices.SetDeviceActive(ctx, device.ID, false); err != nil {
		return err
	}

	if err := e.recordEvent(ctx, device.ID, models.EventDisconnect, now, models.StateOnline, models.StateOffline, map[string]string{
		"last_seen": device.LastSeen.UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	if _, err := e.alerts.Evaluate(ctx, alerting.Condition{
		Type:      models.AlertOffline,
		Device:    device,
		Timestamp: now,
	}); err != nil {
		return err
	}

	e.logger.Debug().
		Str("mac", device.MAC).
		Time("last_seen", device.LastSeen).
		Msg("Device went offline")

	return nil
}

func (e *Engine) markOnline(ctx context.Context, device *models.Device, now time.Time) error {
	if err := e.devices.SetDeviceActive(ctx, device.ID, true); err != nil {
		return err
	}

	if err := e.recordEvent(ctx, device.ID, models.EventConnect, now, models.StateOffline, models.StateOnline, nil); err != nil {
		return err
	}

	if _, err := e.alerts.ResolveCondition(ctx, &device.ID, models.AlertOffline, now); err != nil {
		return err
	}

	e.logger.Debug().
		Str("mac", device.MAC).
		Msg("Device came back online")

	return nil
}

func (e *Engine) recordEvent(
	ctx context.Context,
	deviceID int64,
	eventType models.EventType,
	at time.Time,
	previous, next string,
	details map[string]string,
) error {
	var raw json.RawMessage

	if len(details) > 0 {
		encoded, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode %s event details: %w", eventType, err)
		}

		raw = encoded
	}

	if _, err := e.events.InsertDeviceEvent(ctx, &models.DeviceEvent{
		DeviceID:      deviceID,
		EventType:     eventType,
		OccurredAt:    at,
		PreviousState: previous,
		NewState:      next,
		Details:       raw,
	}); err != nil {
		return err
	}

	return nil
}
