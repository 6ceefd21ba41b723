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

package alerting

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/settings"
)

type fakeAlertStore struct {
	alerts []*models.Alert
}

func (f *fakeAlertStore) open(deviceID *int64, alertType models.AlertType) *models.Alert {
	for _, a := range f.alerts {
		if a.IsResolved || a.AlertType != alertType {
			continue
		}

		if deviceID == nil && a.DeviceID == nil {
			return a
		}

		if deviceID != nil && a.DeviceID != nil && *deviceID == *a.DeviceID {
			return a
		}
	}

	return nil
}

func (f *fakeAlertStore) GetOpenAlert(_ context.Context, deviceID *int64, alertType models.AlertType) (*models.Alert, error) {
	if a := f.open(deviceID, alertType); a != nil {
		return a, nil
	}

	return nil, db.ErrNotFound
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, alert *models.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAlertStore) RefreshAlert(_ context.Context, id, message string, metadata map[string]string, at time.Time) error {
	for _, a := range f.alerts {
		if a.ID == id {
			a.Message = message

			if metadata != nil {
				a.Metadata = metadata
			}

			a.UpdatedAt = at
		}
	}

	return nil
}

func (f *fakeAlertStore) ResolveAlert(_ context.Context, id string, at time.Time) error {
	for _, a := range f.alerts {
		if a.ID == id && !a.IsResolved {
			a.IsResolved = true
			resolvedAt := at
			a.ResolvedAt = &resolvedAt
		}
	}

	return nil
}

func (f *fakeAlertStore) ResolveOpenAlert(_ context.Context, deviceID *int64, alertType models.AlertType, at time.Time) (bool, error) {
	a := f.open(deviceID, alertType)
	if a == nil {
		return false, nil
	}

	a.IsResolved = true
	resolvedAt := at
	a.ResolvedAt = &resolvedAt

	return true, nil
}

func (f *fakeAlertStore) AcknowledgeAlert(_ context.Context, id, who string, at time.Time) error {
	for _, a := range f.alerts {
		if a.ID == id {
			a.Acknowledged = true
			a.AcknowledgedBy = who
			ackAt := at
			a.AcknowledgedAt = &ackAt
		}
	}

	return nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Bool(_ context.Context, key string, def bool) bool {
	if v, ok := f.values[key]; ok {
		parsed, err := strconv.ParseBool(v)
		if err == nil {
			return parsed
		}
	}

	return def
}

func (f *fakeSettings) Float(_ context.Context, key string, def float64) float64 {
	if v, ok := f.values[key]; ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return parsed
		}
	}

	return def
}

func newTestEngine(values map[string]string) (*Engine, *fakeAlertStore) {
	store := &fakeAlertStore{}
	engine := NewEngine(store, &fakeSettings{values: values}, logger.NewTestLogger())

	return engine, store
}

func testDevice(id int64, tags ...string) *models.Device {
	return &models.Device{
		ID:        id,
		MAC:       "AA:BB:CC:DD:EE:01",
		PrimaryIP: "192.168.1.50",
		Hostname:  "laptop",
		Tags:      tags,
		LastSeen:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestOfflineAlertNotDuplicated(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	device := testDevice(1)
	first := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)

	a1, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: device, Timestamp: first})
	require.NoError(t, err)
	require.NotNil(t, a1)

	a2, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: device, Timestamp: second})
	require.NoError(t, err)
	require.NotNil(t, a2)

	assert.Len(t, store.alerts, 1, "consecutive offline conditions must not duplicate the alert")
	assert.Equal(t, a1.ID, a2.ID)
	assert.Equal(t, second, store.alerts[0].UpdatedAt, "updated_at must advance on refresh")
}

func TestOfflineSeverityEscalatesForCriticalTag(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()
	now := time.Now()

	plain, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: testDevice(1), Timestamp: now})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityLow, plain.Severity)

	critical, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: testDevice(2, TagCritical), Timestamp: now})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, critical.Severity)
}

func TestDisabledConditionDoesNotFire(t *testing.T) {
	engine, store := newTestEngine(map[string]string{
		settings.KeyOfflineAlertEnabled: "false",
	})

	alert, err := engine.Evaluate(context.Background(), Condition{
		Type:      models.AlertOffline,
		Device:    testDevice(1),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	assert.Nil(t, alert)
	assert.Empty(t, store.alerts)
}

func TestNewDeviceAlert(t *testing.T) {
	engine, store := newTestEngine(nil)

	alert, err := engine.Evaluate(context.Background(), Condition{
		Type:      models.AlertNewDevice,
		Device:    testDevice(1),
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	require.NotNil(t, alert)
	assert.Equal(t, models.SeverityMedium, alert.Severity)
	assert.Len(t, store.alerts, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", alert.Metadata["mac"])
}

func TestWeakSignalHysteresis(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	device := testDevice(1)
	now := time.Now()

	signal := func(v float64) *float64 { return &v }

	// Below threshold: alert opens.
	alert, err := engine.Evaluate(ctx, Condition{Type: models.AlertWeakSignal, Device: device, SignalDBM: signal(-80), Timestamp: now})
	require.NoError(t, err)
	require.NotNil(t, alert)
	require.Len(t, store.alerts, 1)

	// Inside the hysteresis band (threshold -75, margin 5): nothing changes.
	alert, err = engine.Evaluate(ctx, Condition{Type: models.AlertWeakSignal, Device: device, SignalDBM: signal(-72), Timestamp: now})
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.False(t, store.alerts[0].IsResolved)

	// Recovered above threshold plus margin: alert resolves.
	alert, err = engine.Evaluate(ctx, Condition{Type: models.AlertWeakSignal, Device: device, SignalDBM: signal(-65), Timestamp: now})
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.True(t, store.alerts[0].IsResolved)

	// Dropping below threshold again opens a fresh alert.
	alert, err = engine.Evaluate(ctx, Condition{Type: models.AlertWeakSignal, Device: device, SignalDBM: signal(-80), Timestamp: now})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Len(t, store.alerts, 2)
}

func TestResolveConditionClearsOfflineAlert(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	device := testDevice(1)
	now := time.Now()

	_, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: device, Timestamp: now})
	require.NoError(t, err)

	resolved, err := engine.ResolveCondition(ctx, &device.ID, models.AlertOffline, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, resolved)
	assert.True(t, store.alerts[0].IsResolved)

	// Nothing left to resolve; idempotent.
	resolved, err = engine.ResolveCondition(ctx, &device.ID, models.AlertOffline, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, resolved)
}

func TestTransitionsCollectCycleAlertDelta(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()
	device := testDevice(1)
	now := time.Now()

	signal := func(v float64) *float64 { return &v }

	// Open an offline alert, then refresh it: one opened transition, not two.
	_, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: device, Timestamp: now})
	require.NoError(t, err)
	_, err = engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: device, Timestamp: now.Add(time.Minute)})
	require.NoError(t, err)

	opened, resolved := engine.Transitions()
	require.Len(t, opened, 1, "a refresh is not an open transition")
	assert.Empty(t, resolved)

	// Device returns: the offline alert auto-resolves.
	ok, err := engine.ResolveCondition(ctx, &device.ID, models.AlertOffline, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	// Weak signal opens and then recovers past the hysteresis margin.
	_, err = engine.Evaluate(ctx, Condition{Type: models.AlertWeakSignal, Device: device, SignalDBM: signal(-80), Timestamp: now})
	require.NoError(t, err)
	_, err = engine.Evaluate(ctx, Condition{Type: models.AlertWeakSignal, Device: device, SignalDBM: signal(-60), Timestamp: now.Add(time.Minute)})
	require.NoError(t, err)

	opened, resolved = engine.Transitions()
	require.Len(t, opened, 2)
	require.Len(t, resolved, 2)
	assert.Equal(t, models.AlertOffline, opened[0].AlertType)
	assert.Equal(t, models.AlertWeakSignal, opened[1].AlertType)
	assert.Equal(t, models.AlertOffline, resolved[0].AlertType)
	assert.Equal(t, models.AlertWeakSignal, resolved[1].AlertType)
	assert.True(t, resolved[0].IsResolved)
}

func TestAcknowledge(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	now := time.Now()

	alert, err := engine.Evaluate(ctx, Condition{Type: models.AlertOffline, Device: testDevice(1), Timestamp: now})
	require.NoError(t, err)

	require.NoError(t, engine.Acknowledge(ctx, alert.ID, "admin", now.Add(time.Minute)))

	assert.True(t, store.alerts[0].Acknowledged)
	assert.Equal(t, "admin", store.alerts[0].AcknowledgedBy)
}
