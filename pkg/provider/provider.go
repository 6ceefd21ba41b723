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

// Package provider defines the router polling capability and selects a
// concrete implementation by configuration. The engine depends only on the
// interface and is agnostic to how the client list is acquired.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/provider/snmp"
	"github.com/carverauto/lanpulse/pkg/provider/ssh"
)

// ErrUnknownProvider marks an unrecognized provider type in configuration.
var ErrUnknownProvider = errors.New("unknown polling provider type")

// PollingProvider returns the set of clients the router currently reports.
type PollingProvider interface {
	GetClients(ctx context.Context) ([]*models.RawClient, error)
	TestConnection(ctx context.Context) bool
}

// New builds the polling provider selected by the configuration.
func New(cfg *models.ProviderConfig, log logger.Logger) (PollingProvider, error) {
	switch cfg.Type {
	case models.ProviderTypeSSH:
		return ssh.New(cfg.SSH, cfg.Timeout, log)
	case models.ProviderTypeSNMP:
		return snmp.New(cfg.SNMP, cfg.Timeout, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Type)
	}
}
