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

package ssh

import (
	"bufio"
	"net"
	"strings"

	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/registry"
)

// neighbor is one parsed `ip neigh` entry.
type neighbor struct {
	IP        string
	MAC       string
	Interface string
	State     string
}

// lease is one parsed dnsmasq lease entry.
type lease struct {
	MAC      string
	IP       string
	Hostname string
}

// parseNeighbors reads `ip neigh show` output. Entries without a link-layer
// address or in FAILED/INCOMPLETE state are not presence evidence and are
// skipped, as are IPv6 rows, which would duplicate the MAC.
func parseNeighbors(output string) []neighbor {
	var out []neighbor

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		ip := net.ParseIP(fields[0])
		if ip == nil || ip.To4() == nil {
			continue
		}

		entry := neighbor{IP: ip.String()}

		for i := 1; i < len(fields)-1; i++ {
			switch fields[i] {
			case "dev":
				entry.Interface = fields[i+1]
			case "lladdr":
				entry.MAC = fields[i+1]
			}
		}

		entry.State = fields[len(fields)-1]

		switch entry.State {
		case "FAILED", "INCOMPLETE", "NONE":
			continue
		}

		if entry.MAC == "" {
			continue
		}

		out = append(out, entry)
	}

	return out
}

// parseLeases reads dnsmasq lease-file lines:
//
//	<expiry> <mac> <ip> <hostname> <client-id>
func parseLeases(output string) []lease {
	var out []lease

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		entry := lease{
			MAC: fields[1],
			IP:  fields[2],
		}

		if fields[3] != "*" {
			entry.Hostname = fields[3]
		}

		out = append(out, entry)
	}

	return out
}

// mergeClients turns neighbor entries into raw client records, enriched
// with lease hostnames. The neighbor table is the presence signal; leases
// persist after a device leaves, so a lease alone never creates a record.
func mergeClients(neighbors []neighbor, leases []lease) []*models.RawClient {
	hostnames := make(map[string]string, len(leases))

	for _, l := range leases {
		if mac, err := registry.CanonicalMAC(l.MAC); err == nil && l.Hostname != "" {
			hostnames[mac] = l.Hostname
		}
	}

	seen := make(map[string]bool, len(neighbors))
	clients := make([]*models.RawClient, 0, len(neighbors))

	for _, n := range neighbors {
		mac, err := registry.CanonicalMAC(n.MAC)
		if err != nil || seen[mac] {
			continue
		}

		seen[mac] = true

		clients = append(clients, &models.RawClient{
			MAC:       mac,
			IP:        n.IP,
			Hostname:  hostnames[mac],
			Interface: interfaceClass(n.Interface),
		})
	}

	return clients
}

// interfaceClass maps a kernel device name to a coarse link class.
func interfaceClass(dev string) string {
	switch {
	case dev == "":
		return ""
	case strings.HasPrefix(dev, "wlan"), strings.HasPrefix(dev, "phy"), strings.HasPrefix(dev, "ath"):
		return "wireless"
	case strings.HasPrefix(dev, "eth"), strings.HasPrefix(dev, "lan"), strings.HasPrefix(dev, "br-"):
		return "wired"
	default:
		return dev
	}
}
