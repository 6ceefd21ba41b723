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

package activity

import (
	"context"
	"time"

	"github.com/carverauto/lanpulse/pkg/alerting"
	"github.com/carverauto/lanpulse/pkg/models"
)

// DeviceStore is the store subset the activity engine needs.
type DeviceStore interface {
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
	SetDeviceActive(ctx context.Context, id int64, active bool) error
	ListActiveDevicesSeenBefore(ctx context.Context, cutoff time.Time) ([]*models.Device, error)
	ListInactiveDevicesSeenSince(ctx context.Context, cutoff time.Time) ([]*models.Device, error)
}

// EventStore records device transition events.
type EventStore interface {
	InsertDeviceEvent(ctx context.Context, event *models.DeviceEvent) (int64, error)
}

// AlertEngine is the alerting surface the activity engine drives.
type AlertEngine interface {
	Evaluate(ctx context.Context, cond alerting.Condition) (*models.Alert, error)
	ResolveCondition(ctx context.Context, deviceID *int64, alertType models.AlertType, at time.Time) (bool, error)
}

// Settings supplies the tunable activity thresholds.
type Settings interface {
	Minutes(ctx context.Context, key string, defMinutes int) time.Duration
}
