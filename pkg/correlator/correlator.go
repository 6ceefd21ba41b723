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

// Package correlator links syslog rows to devices with confidence-scored
// heuristics. The matcher is best-effort: low-confidence false positives
// are acceptable because the score is exposed for consumers to filter on.
package correlator

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/settings"
)

const defaultBatchLimit = 500

// SyslogStore is the store subset the correlator needs.
type SyslogStore interface {
	ListUnlinkedSyslogSince(ctx context.Context, since time.Time, limit int) ([]*models.SyslogMessage, error)
	InsertSyslogLink(ctx context.Context, link *models.SyslogDeviceLink) error
}

// DeviceStore supplies the device inventory to match against.
type DeviceStore interface {
	ListDevices(ctx context.Context, activeOnly bool) ([]*models.Device, error)
}

// Settings supplies the correlator tunables.
type Settings interface {
	Bool(ctx context.Context, key string, def bool) bool
	Float(ctx context.Context, key string, def float64) float64
	Minutes(ctx context.Context, key string, defMinutes int) time.Duration
}

// Correlator walks unlinked syslog rows and records device links.
type Correlator struct {
	syslog   SyslogStore
	devices  DeviceStore
	settings Settings
	logger   logger.Logger
}

// New creates a Correlator over the given stores.
func New(syslog SyslogStore, devices DeviceStore, cfg Settings, log logger.Logger) *Correlator {
	return &Correlator{
		syslog:   syslog,
		devices:  devices,
		settings: cfg,
		logger:   log,
	}
}

// Correlate matches unlinked syslog rows received within the lookback
// window against the device inventory. Per device the rules run in
// descending-confidence order and the first hit wins; a single row may
// still link to several devices. Matches below the confidence floor are
// discarded. Returns the number of links recorded.
func (c *Correlator) Correlate(ctx context.Context, now time.Time) (int, error) {
	if !c.settings.Bool(ctx, settings.KeyCorrelatorEnabled, true) {
		return 0, nil
	}

	lookback := c.settings.Minutes(ctx, settings.KeyCorrelatorLookbackMin, settings.DefaultCorrelatorLookbackMin)
	floor := c.settings.Float(ctx, settings.KeyMinConfidence, settings.DefaultMinConfidence)
	halfLife := c.settings.Minutes(ctx, settings.KeyIPDecayHalfLifeMinutes, settings.DefaultIPDecayHalfLifeMinutes)

	rows, err := c.syslog.ListUnlinkedSyslogSince(ctx, now.Add(-lookback), defaultBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list unlinked syslog: %w", err)
	}

	if len(rows) == 0 {
		return 0, nil
	}

	devices, err := c.devices.ListDevices(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list devices for correlation: %w", err)
	}

	rules := []Rule{
		macRule{},
		ipRule{halfLife: halfLife},
		hostnameRule{},
	}

	linked := 0

	for _, row := range rows {
		for _, device := range devices {
			match, ok := firstMatch(rules, row, device, now)
			if !ok || match.Confidence < floor {
				continue
			}

			if err := c.syslog.InsertSyslogLink(ctx, &models.SyslogDeviceLink{
				SyslogID:    row.ID,
				DeviceID:    device.ID,
				MatchMethod: match.Method,
				Confidence:  match.Confidence,
				CreatedAt:   now,
			}); err != nil {
				return linked, fmt.Errorf("link syslog %d to device %d: %w", row.ID, device.ID, err)
			}

			linked++
		}
	}

	if linked > 0 {
		c.logger.Debug().
			Int("rows", len(rows)).
			Int("links", linked).
			Msg("Syslog correlation recorded links")
	}

	return linked, nil
}

func firstMatch(rules []Rule, row *models.SyslogMessage, device *models.Device, now time.Time) (Match, bool) {
	for _, rule := range rules {
		if match, ok := rule.Match(row, device, now); ok {
			return match, true
		}
	}

	return Match{}, false
}
