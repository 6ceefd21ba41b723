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

// Package engine schedules and runs collection cycles: poll the router,
// ingest snapshots, derive activity transitions, and on slower cadences
// correlate syslog and apply retention. The store is the single source of
// truth; every cycle re-derives state from it rather than caching.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/lanpulse/pkg/activity"
	"github.com/carverauto/lanpulse/pkg/alerting"
	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/registry"
	"github.com/carverauto/lanpulse/pkg/settings"
)

const providerTimeout = 60 * time.Second

// CycleEngine runs one full poll-ingest-evaluate pass. All store writes of
// a cycle commit as one transaction; event publishing happens after the
// commit so a broker outage cannot roll back recorded state.
type CycleEngine struct {
	store     *db.Store
	provider  PollingProvider
	publisher EventPublisher
	logger    logger.Logger
}

// NewCycleEngine creates a cycle engine. publisher may be nil.
func NewCycleEngine(store *db.Store, p PollingProvider, publisher EventPublisher, log logger.Logger) *CycleEngine {
	return &CycleEngine{
		store:     store,
		provider:  p,
		publisher: publisher,
		logger:    log,
	}
}

// RunCycle executes one collection cycle. A provider failure skips the
// cycle entirely: "no fresh information" must never be mistaken for "all
// devices disconnected", so the activity sweep only runs on a successful
// poll.
func (e *CycleEngine) RunCycle(ctx context.Context, now time.Time) error {
	pollCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	clients, err := e.provider.GetClients(pollCtx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Provider poll failed, skipping cycle")
		return nil
	}

	var result *cycleResult

	err = e.store.WithTx(ctx, func(tx *db.Store) error {
		var txErr error

		result, txErr = e.runCycleTx(ctx, tx, clients, now)

		return txErr
	})
	if err != nil {
		return err
	}

	e.publishTransitions(ctx, result, now)

	e.logger.Debug().
		Int("clients", len(clients)).
		Int("went_offline", len(result.stats.WentOffline)).
		Int("came_online", len(result.stats.CameOnline)).
		Int("alerts_opened", len(result.alertsOpened)).
		Int("alerts_resolved", len(result.alertsResolved)).
		Msg("Collection cycle completed")

	return nil
}

// cycleResult carries what a committed cycle publishes: activity transitions
// plus the alerts the cycle opened and auto-resolved.
type cycleResult struct {
	stats          *activity.SweepStats
	alertsOpened   []*models.Alert
	alertsResolved []*models.Alert
}

func (e *CycleEngine) runCycleTx(ctx context.Context, tx *db.Store, clients []*models.RawClient, now time.Time) (*cycleResult, error) {
	cfg := settings.NewStore(tx, e.logger)
	reg := registry.New(tx, e.logger)
	recorder := registry.NewRecorder(reg, tx, e.logger)
	alerts := alerting.NewEngine(tx, cfg, e.logger)
	act := activity.NewEngine(tx, tx, alerts, cfg, e.logger)

	observations := make([]activity.Observation, 0, len(clients))

	for _, client := range clients {
		result, err := recorder.Ingest(ctx, client, now)
		if errors.Is(err, registry.ErrInvalidMAC) {
			// Per-record isolation: a malformed record never aborts the
			// cycle.
			e.logger.Warn().Str("mac", client.MAC).Str("ip", client.IP).Msg("Dropping client record with unusable MAC")
			continue
		}

		if err != nil {
			return nil, err
		}

		observations = append(observations, activity.Observation{Client: client, Result: result})
	}

	if err := act.ProcessObservations(ctx, observations, now); err != nil {
		return nil, err
	}

	stats, err := act.Sweep(ctx, now)
	if err != nil {
		return nil, err
	}

	opened, resolved := alerts.Transitions()

	return &cycleResult{
		stats:          stats,
		alertsOpened:   opened,
		alertsResolved: resolved,
	}, nil
}

// publishTransitions emits device transition and alert lifecycle events
// post-commit. Publishing is best-effort; failures are logged, never
// propagated.
func (e *CycleEngine) publishTransitions(ctx context.Context, result *cycleResult, now time.Time) {
	if e.publisher == nil {
		return
	}

	for _, device := range result.stats.WentOffline {
		if err := e.publisher.PublishDeviceTransition(ctx, device, models.StateOnline, models.StateOffline, now); err != nil {
			e.logger.Warn().Err(err).Str("mac", device.MAC).Msg("Failed to publish offline transition")
		}
	}

	for _, device := range result.stats.CameOnline {
		if err := e.publisher.PublishDeviceTransition(ctx, device, models.StateOffline, models.StateOnline, now); err != nil {
			e.logger.Warn().Err(err).Str("mac", device.MAC).Msg("Failed to publish online transition")
		}
	}

	for _, alert := range result.alertsOpened {
		if err := e.publisher.PublishAlertEvent(ctx, alert, false, now); err != nil {
			e.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to publish alert opened event")
		}
	}

	for _, alert := range result.alertsResolved {
		if err := e.publisher.PublishAlertEvent(ctx, alert, true, now); err != nil {
			e.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to publish alert resolved event")
		}
	}
}
