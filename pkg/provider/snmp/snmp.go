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

// Package snmp polls a router's ARP table (ipNetToMediaTable) over SNMP v2c
// to derive the current client list. SNMP exposes no hostname or signal
// data; those fields stay empty and downstream components treat them as
// optional.
package snmp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/registry"
)

const (
	defaultPort      = 161
	defaultCommunity = "public"
	defaultTimeout   = 10 * time.Second
	defaultRetries   = 1

	oidSysDescr             = ".1.3.6.1.2.1.1.1.0"
	oidIPNetToMediaPhysAddr = ".1.3.6.1.2.1.4.22.1.2"
	physAddrLen             = 6
)

// Provider polls a router's ARP table over SNMP.
type Provider struct {
	host      string
	port      uint16
	community string
	timeout   time.Duration
	retries   int
	logger    logger.Logger
}

// New builds an SNMP polling provider from configuration.
func New(cfg *models.SNMPConfig, timeout models.Duration, log logger.Logger) (*Provider, error) {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	community := cfg.Community
	if community == "" {
		community = defaultCommunity
	}

	t := time.Duration(timeout)
	if t <= 0 {
		t = defaultTimeout
	}

	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	return &Provider{
		host:      cfg.Host,
		port:      port,
		community: community,
		timeout:   t,
		retries:   retries,
		logger:    log,
	}, nil
}

// GetClients walks ipNetToMediaPhysAddress and returns one record per ARP
// entry with a valid 48-bit address.
func (p *Provider) GetClients(ctx context.Context) ([]*models.RawClient, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect snmp: %w", err)
	}
	defer client.Conn.Close()

	var clients []*models.RawClient

	seen := make(map[string]bool)

	err = client.BulkWalk(oidIPNetToMediaPhysAddr, func(pdu gosnmp.SnmpPDU) error {
		raw, ok := arpEntry(pdu)
		if !ok || seen[raw.MAC] {
			return nil
		}

		seen[raw.MAC] = true
		clients = append(clients, raw)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk arp table: %w", err)
	}

	return clients, nil
}

// TestConnection reports whether the agent answers a sysDescr get.
func (p *Provider) TestConnection(ctx context.Context) bool {
	client, err := p.connect(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Str("host", p.host).Msg("SNMP connection test failed")
		return false
	}

	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysDescr})
	if err != nil || result.Error != gosnmp.NoError {
		p.logger.Warn().Err(err).Str("host", p.host).Msg("SNMP sysDescr get failed")
		return false
	}

	return true
}

func (p *Provider) connect(ctx context.Context) (*gosnmp.GoSNMP, error) {
	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    p.host,
		Port:      p.port,
		Community: p.community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   p.retries,
		MaxOids:   gosnmp.MaxOids,
	}

	if err := client.Connect(); err != nil {
		return nil, err
	}

	return client, nil
}

// arpEntry decodes one ipNetToMediaPhysAddress PDU. The OID index carries
// <ifIndex>.<ip.a>.<ip.b>.<ip.c>.<ip.d>; the value is the raw MAC bytes.
func arpEntry(pdu gosnmp.SnmpPDU) (*models.RawClient, bool) {
	if pdu.Type != gosnmp.OctetString {
		return nil, false
	}

	addr, ok := pdu.Value.([]byte)
	if !ok || len(addr) != physAddrLen {
		return nil, false
	}

	mac, err := registry.CanonicalMAC(net.HardwareAddr(addr).String())
	if err != nil {
		return nil, false
	}

	ip := indexToIP(pdu.Name)
	if ip == "" {
		return nil, false
	}

	return &models.RawClient{MAC: mac, IP: ip}, true
}

func indexToIP(oid string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(oid, "."), strings.TrimPrefix(oidIPNetToMediaPhysAddr, ".")+".")

	parts := strings.Split(trimmed, ".")
	if len(parts) != 5 {
		// ifIndex followed by the four address octets.
		return ""
	}

	ip := net.ParseIP(strings.Join(parts[1:], "."))
	if ip == nil {
		return ""
	}

	return ip.String()
}
