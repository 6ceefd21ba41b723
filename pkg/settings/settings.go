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

// Package settings provides typed read-through access to the key/value
// configuration table. Every read goes to the store; a missing or invalid
// value falls back to the documented default with a warning, never an error.
package settings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/carverauto/lanpulse/pkg/db"
	"github.com/carverauto/lanpulse/pkg/logger"
)

// Well-known settings keys. The schema migration seeds their defaults.
const (
	KeyInactiveThresholdMinutes = "activity.inactive_threshold_minutes"

	KeyNewDeviceAlertEnabled    = "alerts.new_device.enabled"
	KeyOfflineAlertEnabled      = "alerts.offline.enabled"
	KeyWeakSignalAlertEnabled   = "alerts.weak_signal.enabled"
	KeyWeakSignalThresholdDBM   = "alerts.weak_signal.threshold_dbm"
	KeyWeakSignalRecoveryMargin = "alerts.weak_signal.recovery_margin_dbm"

	KeyCorrelatorEnabled       = "correlator.enabled"
	KeyMinConfidence           = "correlator.min_confidence"
	KeyIPDecayHalfLifeMinutes  = "correlator.ip_decay_half_life_minutes"
	KeyCorrelatorLookbackMin   = "correlator.lookback_minutes"

	KeySnapshotRetentionDays = "retention.snapshot_days"
	KeyEventRetentionDays    = "retention.event_days"
	KeyAlertRetentionDays    = "retention.alert_days"
	KeySyslogRetentionDays   = "retention.syslog_days"
	KeyRetentionLastRun      = "retention.last_run"
)

// Documented defaults, used when the settings table is missing or holds an
// unparsable value.
const (
	DefaultInactiveThresholdMinutes = 10
	DefaultWeakSignalThresholdDBM   = -75.0
	DefaultWeakSignalRecoveryMargin = 5.0
	DefaultMinConfidence            = 0.3
	DefaultIPDecayHalfLifeMinutes   = 30
	DefaultCorrelatorLookbackMin    = 60
	DefaultSnapshotRetentionDays    = 30
	DefaultEventRetentionDays       = 90
	DefaultAlertRetentionDays       = 30
	DefaultSyslogRetentionDays      = 14
)

// Reader is the store subset the settings layer needs.
type Reader interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value, description string) error
}

// Store reads typed settings with fallback defaults.
type Store struct {
	reader Reader
	logger logger.Logger
}

// NewStore creates a settings store over the given reader.
func NewStore(reader Reader, log logger.Logger) *Store {
	return &Store{
		reader: reader,
		logger: log,
	}
}

// String returns the raw value for key, or def when absent.
func (s *Store) String(ctx context.Context, key, def string) string {
	value, err := s.reader.GetSetting(ctx, key)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	return value
}

// Int returns the integer value for key, or def when absent or invalid.
func (s *Store) Int(ctx context.Context, key string, def int) int {
	value, err := s.reader.GetSetting(ctx, key)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	return parsed
}

// Float returns the float value for key, or def when absent or invalid.
func (s *Store) Float(ctx context.Context, key string, def float64) float64 {
	value, err := s.reader.GetSetting(ctx, key)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	return parsed
}

// Bool returns the boolean value for key, or def when absent or invalid.
func (s *Store) Bool(ctx context.Context, key string, def bool) bool {
	value, err := s.reader.GetSetting(ctx, key)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		s.warnFallback(key, def, err)
		return def
	}

	return parsed
}

// Minutes returns the value of an integer minutes key as a duration.
func (s *Store) Minutes(ctx context.Context, key string, defMinutes int) time.Duration {
	return time.Duration(s.Int(ctx, key, defMinutes)) * time.Minute
}

// Time returns the RFC3339 timestamp stored under key. A missing key
// returns the zero time without a warning; "never recorded" is a normal
// state for tracking keys like retention.last_run.
func (s *Store) Time(ctx context.Context, key string) time.Time {
	value, err := s.reader.GetSetting(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrSettingNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read setting")
		}

		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Invalid timestamp setting")
		return time.Time{}
	}

	return parsed
}

// SetTime stores a timestamp under key in RFC3339 form.
func (s *Store) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.reader.SetSetting(ctx, key, t.UTC().Format(time.RFC3339), "")
}

func (s *Store) warnFallback(key string, def any, err error) {
	if errors.Is(err, db.ErrSettingNotFound) {
		s.logger.Warn().Str("key", key).Interface("default", def).Msg("Setting missing, using default")
		return
	}

	s.logger.Warn().Err(err).Str("key", key).Interface("default", def).Msg("Setting unusable, using default")
}
