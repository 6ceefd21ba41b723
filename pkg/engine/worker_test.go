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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/retention"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fakeClock) Ticker(_ time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{c: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)

	return t
}

func (f *fakeClock) ticker(i int) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.tickers[i]
}

type fakeTicker struct {
	c chan time.Time
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()                  {}

func (t *fakeTicker) tick(at time.Time) {
	t.c <- at
}

type fakeCycler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCycler) RunCycle(_ context.Context, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	return f.err
}

func (f *fakeCycler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type fakeCorrelator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCorrelator) Correlate(_ context.Context, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	return 0, nil
}

func (f *fakeCorrelator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type fakeSweeper struct {
	mu     sync.Mutex
	due    bool
	sweeps int
}

func (f *fakeSweeper) ShouldRun(_ context.Context, _ time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.due
}

func (f *fakeSweeper) Sweep(_ context.Context, _ time.Time) (*retention.SweepReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweeps++
	f.due = false

	return &retention.SweepReport{}, nil
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sweeps
}

func startWorker(t *testing.T, w *Worker) (stop func()) {
	t.Helper()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = w.Run(context.Background())
	}()

	return func() {
		w.Stop()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msg)
}

func TestWorkerRunsInitialCycleImmediately(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cycler := &fakeCycler{}
	w := NewWorker(cycler, nil, nil, WorkerOptions{
		PollInterval:      2 * time.Minute,
		CorrelateInterval: 5 * time.Minute,
		Clock:             clock,
	}, logger.NewTestLogger())

	stop := startWorker(t, w)
	defer stop()

	eventually(t, func() bool { return cycler.count() == 1 }, "initial cycle should run without waiting for a tick")
}

func TestWorkerCyclesOnPollTicks(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cycler := &fakeCycler{}
	w := NewWorker(cycler, nil, nil, WorkerOptions{
		PollInterval:      2 * time.Minute,
		CorrelateInterval: 5 * time.Minute,
		Clock:             clock,
	}, logger.NewTestLogger())

	stop := startWorker(t, w)
	defer stop()

	eventually(t, func() bool { return cycler.count() == 1 }, "initial cycle")

	clock.ticker(0).tick(clock.Now())
	eventually(t, func() bool { return cycler.count() == 2 }, "first poll tick")

	clock.ticker(0).tick(clock.Now())
	eventually(t, func() bool { return cycler.count() == 3 }, "second poll tick")
}

func TestWorkerCorrelatesOnItsOwnCadence(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cycler := &fakeCycler{}
	correlator := &fakeCorrelator{}
	w := NewWorker(cycler, correlator, nil, WorkerOptions{
		PollInterval:      2 * time.Minute,
		CorrelateInterval: 5 * time.Minute,
		Clock:             clock,
	}, logger.NewTestLogger())

	stop := startWorker(t, w)
	defer stop()

	eventually(t, func() bool { return cycler.count() == 1 }, "initial cycle")
	assert.Zero(t, correlator.count(), "correlation waits for its own tick")

	clock.ticker(1).tick(clock.Now())
	eventually(t, func() bool { return correlator.count() == 1 }, "correlate tick")
	assert.Equal(t, 1, cycler.count(), "correlate tick must not trigger a poll cycle")
}

func TestWorkerSweepsRetentionWhenDue(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cycler := &fakeCycler{}
	sweeper := &fakeSweeper{due: true}
	w := NewWorker(cycler, nil, sweeper, WorkerOptions{
		PollInterval:      2 * time.Minute,
		CorrelateInterval: 5 * time.Minute,
		Clock:             clock,
	}, logger.NewTestLogger())

	stop := startWorker(t, w)
	defer stop()

	eventually(t, func() bool { return sweeper.count() == 1 }, "due sweep runs after the cycle")

	// No longer due: further cycles do not sweep.
	clock.ticker(0).tick(clock.Now())
	eventually(t, func() bool { return cycler.count() == 2 }, "poll tick")
	assert.Equal(t, 1, sweeper.count())
}

func TestWorkerSkipsRetentionAfterFailedCycle(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cycler := &fakeCycler{err: errors.New("store unreachable")}
	sweeper := &fakeSweeper{due: true}
	w := NewWorker(cycler, nil, sweeper, WorkerOptions{
		PollInterval:      2 * time.Minute,
		CorrelateInterval: 5 * time.Minute,
		Clock:             clock,
	}, logger.NewTestLogger())

	stop := startWorker(t, w)
	defer stop()

	eventually(t, func() bool { return cycler.count() == 1 }, "initial cycle")
	assert.Zero(t, sweeper.count(), "a failed cycle must not trigger housekeeping")
}

func TestWorkerStops(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cycler := &fakeCycler{}
	w := NewWorker(cycler, nil, nil, WorkerOptions{
		PollInterval:      2 * time.Minute,
		CorrelateInterval: 5 * time.Minute,
		Clock:             clock,
	}, logger.NewTestLogger())

	done := make(chan error, 1)

	go func() {
		done <- w.Run(context.Background())
	}()

	eventually(t, func() bool { return cycler.count() == 1 }, "initial cycle")

	w.Stop()
	w.Stop() // idempotent

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
