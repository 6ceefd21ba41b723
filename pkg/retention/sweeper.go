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

// Package retention prunes historical rows past their configured horizons.
// The sweep never touches device rows or unresolved alerts, and deletions
// are idempotent: re-sweeping already-pruned data is a no-op.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/settings"
)

const sweepInterval = 24 * time.Hour

// PruneStore is the store subset the sweeper needs.
type PruneStore interface {
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteUnlinkedSyslogBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Settings supplies the retention horizons and the last-run marker.
type Settings interface {
	Int(ctx context.Context, key string, def int) int
	Time(ctx context.Context, key string) time.Time
	SetTime(ctx context.Context, key string, t time.Time) error
}

// SweepReport counts what one sweep removed.
type SweepReport struct {
	Snapshots int64
	Events    int64
	Alerts    int64
	Syslog    int64
}

// Total returns the number of rows the sweep removed.
func (r SweepReport) Total() int64 {
	return r.Snapshots + r.Events + r.Alerts + r.Syslog
}

// Sweeper applies the retention horizons.
type Sweeper struct {
	store    PruneStore
	settings Settings
	logger   logger.Logger
}

// NewSweeper creates a Sweeper over the given store.
func NewSweeper(store PruneStore, cfg Settings, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		settings: cfg,
		logger:   log,
	}
}

// ShouldRun reports whether a sweep is due. The cadence is tracked via a
// last-run timestamp rather than a rigid timer, so it self-corrects after
// downtime: a missed day runs on the next check.
func (s *Sweeper) ShouldRun(ctx context.Context, now time.Time) bool {
	lastRun := s.settings.Time(ctx, settings.KeyRetentionLastRun)
	if lastRun.IsZero() {
		return true
	}

	return now.Sub(lastRun) >= sweepInterval
}

// Sweep prunes snapshots, device events, resolved alerts and unlinked
// syslog rows older than their horizons. Each horizon is independently
// configurable. The last-run marker advances only after a fully successful
// sweep, so a partial failure retries on the next scheduled check.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	report := &SweepReport{}

	snapshotDays := s.settings.Int(ctx, settings.KeySnapshotRetentionDays, settings.DefaultSnapshotRetentionDays)
	eventDays := s.settings.Int(ctx, settings.KeyEventRetentionDays, settings.DefaultEventRetentionDays)
	alertDays := s.settings.Int(ctx, settings.KeyAlertRetentionDays, settings.DefaultAlertRetentionDays)
	syslogDays := s.settings.Int(ctx, settings.KeySyslogRetentionDays, settings.DefaultSyslogRetentionDays)

	var err error

	if report.Snapshots, err = s.store.DeleteSnapshotsBefore(ctx, horizon(now, snapshotDays)); err != nil {
		return report, fmt.Errorf("prune snapshots: %w", err)
	}

	if report.Events, err = s.store.DeleteEventsBefore(ctx, horizon(now, eventDays)); err != nil {
		return report, fmt.Errorf("prune events: %w", err)
	}

	if report.Alerts, err = s.store.DeleteResolvedAlertsBefore(ctx, horizon(now, alertDays)); err != nil {
		return report, fmt.Errorf("prune resolved alerts: %w", err)
	}

	if report.Syslog, err = s.store.DeleteUnlinkedSyslogBefore(ctx, horizon(now, syslogDays)); err != nil {
		return report, fmt.Errorf("prune syslog: %w", err)
	}

	if err := s.settings.SetTime(ctx, settings.KeyRetentionLastRun, now); err != nil {
		return report, fmt.Errorf("record retention run: %w", err)
	}

	s.logger.Info().
		Int64("snapshots", report.Snapshots).
		Int64("events", report.Events).
		Int64("alerts", report.Alerts).
		Int64("syslog", report.Syslog).
		Msg("Retention sweep completed")

	return report, nil
}

func horizon(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
