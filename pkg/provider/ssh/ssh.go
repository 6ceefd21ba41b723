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

// Package ssh polls an OpenWrt-style router over SSH, combining the kernel
// neighbor table with DHCP leases into raw client records. All text
// scraping stays here at the boundary; the engine consumes structured rows.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
)

const (
	defaultPort        = 22
	defaultTimeout     = 15 * time.Second
	defaultNeighborCmd = "ip neigh show"
	defaultLeasesCmd   = "cat /tmp/dhcp.leases"
)

var errNoAuthMethod = errors.New("ssh provider needs a password or private key file")

// Provider polls a router over SSH.
type Provider struct {
	addr         string
	neighborCmd  string
	leasesCmd    string
	timeout      time.Duration
	clientConfig *gossh.ClientConfig
	logger       logger.Logger
}

// New builds an SSH polling provider from configuration.
func New(cfg *models.SSHConfig, timeout models.Duration, log logger.Logger) (*Provider, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	t := time.Duration(timeout)
	if t <= 0 {
		t = defaultTimeout
	}

	neighborCmd := cfg.NeighborCmd
	if neighborCmd == "" {
		neighborCmd = defaultNeighborCmd
	}

	leasesCmd := cfg.LeasesCmd
	if leasesCmd == "" {
		leasesCmd = defaultLeasesCmd
	}

	return &Provider{
		addr:        net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port)),
		neighborCmd: neighborCmd,
		leasesCmd:   leasesCmd,
		timeout:     t,
		clientConfig: &gossh.ClientConfig{
			User: cfg.Username,
			Auth: auth,
			// Routers regenerate host keys on reset; pinning would turn
			// every factory reset into an outage.
			HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec
			Timeout:         t,
		},
		logger: log,
	}, nil
}

func authMethods(cfg *models.SSHConfig) ([]gossh.AuthMethod, error) {
	var auth []gossh.AuthMethod

	if cfg.PrivateKeyFile != "" {
		keyBytes, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read ssh private key: %w", err)
		}

		signer, err := gossh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse ssh private key: %w", err)
		}

		auth = append(auth, gossh.PublicKeys(signer))
	}

	if cfg.Password != "" {
		auth = append(auth, gossh.Password(cfg.Password))
	}

	if len(auth) == 0 {
		return nil, errNoAuthMethod
	}

	return auth, nil
}

// GetClients connects to the router, reads the neighbor table and DHCP
// leases, and returns the merged client list.
func (p *Provider) GetClients(ctx context.Context) ([]*models.RawClient, error) {
	client, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial router: %w", err)
	}
	defer client.Close()

	neighborOut, err := p.run(client, p.neighborCmd)
	if err != nil {
		return nil, fmt.Errorf("read neighbor table: %w", err)
	}

	leasesOut, err := p.run(client, p.leasesCmd)
	if err != nil {
		// Leases only enrich hostnames; a router without dnsmasq still
		// yields a usable client list.
		p.logger.Warn().Err(err).Msg("Failed to read DHCP leases, continuing without hostnames")

		leasesOut = ""
	}

	return mergeClients(parseNeighbors(neighborOut), parseLeases(leasesOut)), nil
}

// TestConnection reports whether the router is reachable and accepts our
// credentials.
func (p *Provider) TestConnection(ctx context.Context) bool {
	client, err := p.dial(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("addr", p.addr).Msg("SSH connection test failed")
		return false
	}

	defer client.Close()

	return true
}

func (p *Provider) dial(ctx context.Context) (*gossh.Client, error) {
	dialer := net.Dialer{Timeout: p.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := gossh.NewClientConn(conn, p.addr, p.clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return gossh.NewClient(sshConn, chans, reqs), nil
}

func (p *Provider) run(client *gossh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	out, err := session.Output(cmd)
	if err != nil {
		return "", fmt.Errorf("run %q: %w", cmd, err)
	}

	return string(out), nil
}
