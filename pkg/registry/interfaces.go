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
	"time"

	"github.com/carverauto/lanpulse/pkg/models"
)

// DeviceStore is the store subset the registry needs.
type DeviceStore interface {
	GetDeviceByMAC(ctx context.Context, mac string) (*models.Device, error)
	CreateDevice(ctx context.Context, d *models.Device) (int64, error)
	UpdateDeviceSeen(ctx context.Context, id int64, ip, hostname, manufacturer string, seenAt time.Time) error
}

// SnapshotStore is the store subset the recorder needs.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap *models.Snapshot) (int64, error)
	GetLatestSnapshot(ctx context.Context, deviceID int64) (*models.Snapshot, error)
}
