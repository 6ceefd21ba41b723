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
	"sync"
	"time"

	"github.com/carverauto/lanpulse/pkg/logger"
)

// WorkerOptions configures the scheduling worker.
type WorkerOptions struct {
	PollInterval      time.Duration
	CorrelateInterval time.Duration
	Clock             Clock
}

// Worker drives the collection cycle, syslog correlation and retention
// sweep on independent timers within one goroutine. A cycle error is
// logged and retried on the next tick with identical semantics to a slow
// cycle.
type Worker struct {
	cycler     Cycler
	correlator Correlator
	sweeper    RetentionSweeper
	clock      Clock
	opts       WorkerOptions
	logger     logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewWorker creates a Worker. correlator and sweeper may be nil to disable
// those responsibilities.
func NewWorker(cycler Cycler, correlator Correlator, sweeper RetentionSweeper, opts WorkerOptions, log logger.Logger) *Worker {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Worker{
		cycler:     cycler,
		correlator: correlator,
		sweeper:    sweeper,
		clock:      clock,
		opts:       opts,
		logger:     log,
		done:       make(chan struct{}),
	}
}

// Run blocks until the context is cancelled or Stop is called. The first
// cycle runs immediately; subsequent cycles follow the poll interval.
func (w *Worker) Run(ctx context.Context) error {
	pollTicker := w.clock.Ticker(w.opts.PollInterval)
	defer pollTicker.Stop()

	correlateTicker := w.clock.Ticker(w.opts.CorrelateInterval)
	defer correlateTicker.Stop()

	w.logger.Info().
		Dur("poll_interval", w.opts.PollInterval).
		Dur("correlate_interval", w.opts.CorrelateInterval).
		Msg("Starting collection worker")

	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-pollTicker.Chan():
			w.runCycle(ctx)
		case <-correlateTicker.Chan():
			w.runCorrelation(ctx)
		}
	}
}

// Stop asks the worker to finish the in-flight cycle and exit.
func (w *Worker) Stop() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

func (w *Worker) runCycle(ctx context.Context) {
	now := w.clock.Now()

	if err := w.cycler.RunCycle(ctx, now); err != nil {
		w.logger.Error().Err(err).Msg("Collection cycle failed")
		return
	}

	w.maybeSweepRetention(ctx, now)
}

func (w *Worker) runCorrelation(ctx context.Context) {
	if w.correlator == nil {
		return
	}

	linked, err := w.correlator.Correlate(ctx, w.clock.Now())
	if err != nil {
		w.logger.Error().Err(err).Msg("Syslog correlation failed")
		return
	}

	if linked > 0 {
		w.logger.Info().Int("links", linked).Msg("Correlated syslog rows")
	}
}

func (w *Worker) maybeSweepRetention(ctx context.Context, now time.Time) {
	if w.sweeper == nil || !w.sweeper.ShouldRun(ctx, now) {
		return
	}

	if _, err := w.sweeper.Sweep(ctx, now); err != nil {
		// Best-effort: the last-run marker did not advance, so the sweep
		// retries after the next cycle.
		w.logger.Error().Err(err).Msg("Retention sweep failed")
	}
}
