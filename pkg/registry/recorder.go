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

package registry

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
)

// Recorder appends one time-series snapshot row per device per poll cycle.
// A snapshot always implies "this device was seen now", so the registry
// upsert runs first; devices the provider does not report get no row at
// all — their absence is the offline signal.
type Recorder struct {
	registry  *Registry
	snapshots SnapshotStore
	logger    logger.Logger
}

// NewRecorder creates a Recorder bound to a registry and snapshot store.
func NewRecorder(registry *Registry, snapshots SnapshotStore, log logger.Logger) *Recorder {
	return &Recorder{
		registry:  registry,
		snapshots: snapshots,
		logger:    log,
	}
}

// Ingest upserts the device for one raw client record and writes its
// snapshot. Returns the upsert result so the caller can feed transitions to
// the activity state engine.
func (r *Recorder) Ingest(ctx context.Context, client *models.RawClient, now time.Time) (*UpsertResult, error) {
	result, err := r.registry.UpsertFromSnapshot(ctx, client, now)
	if err != nil {
		return nil, err
	}

	if !result.Created && client.Interface != "" {
		previous, err := r.snapshots.GetLatestSnapshot(ctx, result.DeviceID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}

		if previous != nil && previous.InterfaceClass != "" && previous.InterfaceClass != client.Interface {
			result.InterfaceChanged = true
			result.PreviousInterface = previous.InterfaceClass
			result.NewInterface = client.Interface
		}
	}

	snapshot := &models.Snapshot{
		DeviceID:       result.DeviceID,
		SampleTime:     now,
		IPAddress:      client.IP,
		InterfaceClass: client.Interface,
		SignalDBM:      client.SignalDBM,
		TxRateKbps:     client.TxRateKbps,
		RxRateKbps:     client.RxRateKbps,
		IsOnline:       true,
		Raw:            client.Raw,
	}

	if _, err := r.snapshots.InsertSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	return result, nil
}
