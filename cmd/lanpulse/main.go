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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/lanpulse/pkg/config"
	"github.com/carverauto/lanpulse/pkg/correlator"
	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/engine"
	"github.com/carverauto/lanpulse/pkg/events"
	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/provider"
	"github.com/carverauto/lanpulse/pkg/retention"
	"github.com/carverauto/lanpulse/pkg/settings"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/lanpulse/engine.json", "Path to engine config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg models.EngineConfig

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	mainLogger, err := logger.NewComponentLogger("lanpulse", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database, mainLogger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// A missing or corrupt schema is fatal; the engine never limps along
	// without its tables.
	if err := db.RunMigrations(ctx, pool, mainLogger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := db.NewStore(pool, mainLogger)

	pollingProvider, err := provider.New(cfg.Provider, mainLogger)
	if err != nil {
		return err
	}

	if !pollingProvider.TestConnection(ctx) {
		mainLogger.Warn().Msg("Initial provider connection test failed; polling will retry each cycle")
	}

	var publisher engine.EventPublisher

	if cfg.Events != nil && cfg.Events.Enabled {
		eventPublisher, nc, err := events.Connect(ctx, cfg.Events, mainLogger)
		if err != nil {
			return err
		}

		defer nc.Close()

		publisher = eventPublisher
	}

	settingsStore := settings.NewStore(store, mainLogger)

	worker := engine.NewWorker(
		engine.NewCycleEngine(store, pollingProvider, publisher, mainLogger),
		correlator.New(store, store, settingsStore, mainLogger),
		retention.NewSweeper(store, settingsStore, mainLogger),
		engine.WorkerOptions{
			PollInterval:      time.Duration(cfg.PollInterval),
			CorrelateInterval: time.Duration(cfg.CorrelateInterval),
		},
		mainLogger,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-sigCh
		mainLogger.Info().Str("signal", sig.String()).Msg("Shutting down")
		worker.Stop()
		cancel()
	}()

	if err := worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	mainLogger.Info().Msg("Engine stopped")

	return nil
}
