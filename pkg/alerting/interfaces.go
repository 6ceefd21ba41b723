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
	"time"

	"github.com/carverauto/lanpulse/pkg/models"
)

// AlertStore is the store subset the alert engine needs.
type AlertStore interface {
	GetOpenAlert(ctx context.Context, deviceID *int64, alertType models.AlertType) (*models.Alert, error)
	InsertAlert(ctx context.Context, alert *models.Alert) error
	RefreshAlert(ctx context.Context, id, message string, metadata map[string]string, at time.Time) error
	ResolveAlert(ctx context.Context, id string, at time.Time) error
	ResolveOpenAlert(ctx context.Context, deviceID *int64, alertType models.AlertType, at time.Time) (bool, error)
	AcknowledgeAlert(ctx context.Context, id, who string, at time.Time) error
}

// Settings is the settings subset the alert engine reads per evaluation.
type Settings interface {
	Bool(ctx context.Context, key string, def bool) bool
	Float(ctx context.Context, key string, def float64) float64
}
