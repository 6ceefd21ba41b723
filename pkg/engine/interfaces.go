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

package engine

import (
	"context"
	"time"

	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/retention"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// PollingProvider is the router polling capability the cycle consumes.
type PollingProvider interface {
	GetClients(ctx context.Context) ([]*models.RawClient, error)
}

// EventPublisher emits post-commit CloudEvents. Optional; a nil publisher
// disables publishing.
type EventPublisher interface {
	PublishDeviceTransition(ctx context.Context, device *models.Device, previousState, currentState string, at time.Time) error
	PublishAlertEvent(ctx context.Context, alert *models.Alert, resolved bool, at time.Time) error
}

// Cycler runs one collection cycle.
type Cycler interface {
	RunCycle(ctx context.Context, now time.Time) error
}

// Correlator links syslog rows to devices.
type Correlator interface {
	Correlate(ctx context.Context, now time.Time) (int, error)
}

// RetentionSweeper prunes historical rows on its own cadence.
type RetentionSweeper interface {
	ShouldRun(ctx context.Context, now time.Time) bool
	Sweep(ctx context.Context, now time.Time) (*retention.SweepReport, error)
}
