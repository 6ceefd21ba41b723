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

package correlator

import (
	"math"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/registry"
)

// Match is one accepted rule hit for a (syslog row, device) pair.
type Match struct {
	Method     string
	Confidence float64
}

// Rule is one correlation strategy. Rules run in descending-confidence
// order per device; the first hit wins for that device.
type Rule interface {
	Match(msg *models.SyslogMessage, device *models.Device, now time.Time) (Match, bool)
}

var macPattern = regexp.MustCompile(`(?i)\b[0-9a-f]{2}(?:[:-][0-9a-f]{2}){5}\b`)

// macRule matches an exact MAC mention in the message body. The strongest
// possible evidence: confidence 1.0.
type macRule struct{}

func (macRule) Match(msg *models.SyslogMessage, device *models.Device, _ time.Time) (Match, bool) {
	for _, raw := range macPattern.FindAllString(msg.Message, -1) {
		mac, err := registry.CanonicalMAC(raw)
		if err != nil {
			continue
		}

		if mac == device.MAC {
			return Match{Method: models.MatchMethodMAC, Confidence: 1.0}, true
		}
	}

	return Match{}, false
}

// ipRule matches the row's source IP against the device's primary IP. IPs
// are reassigned by DHCP, so the base confidence of 0.8 halves for every
// half-life elapsed since the device was last seen holding that IP.
type ipRule struct {
	halfLife time.Duration
}

func (r ipRule) Match(msg *models.SyslogMessage, device *models.Device, now time.Time) (Match, bool) {
	if device.PrimaryIP == "" {
		return Match{}, false
	}

	source := sourceIP(msg)
	if source == "" || source != device.PrimaryIP {
		return Match{}, false
	}

	confidence := 0.8

	if r.halfLife > 0 {
		elapsed := now.Sub(device.LastSeen)
		if elapsed > 0 {
			confidence *= math.Pow(0.5, elapsed.Seconds()/r.halfLife.Seconds())
		}
	}

	return Match{Method: models.MatchMethodIP, Confidence: confidence}, true
}

// hostnameRule matches the device hostname or nickname as a substring of
// the message body or as the row's source host. Weak evidence: 0.5.
type hostnameRule struct{}

func (hostnameRule) Match(msg *models.SyslogMessage, device *models.Device, _ time.Time) (Match, bool) {
	for _, name := range []string{device.Hostname, device.Nickname} {
		if len(name) < 3 {
			// Short names match everything; not evidence.
			continue
		}

		if strings.EqualFold(msg.SourceHost, name) ||
			strings.Contains(strings.ToLower(msg.Message), strings.ToLower(name)) {
			return Match{Method: models.MatchMethodHostname, Confidence: 0.5}, true
		}
	}

	return Match{}, false
}

// sourceIP extracts the originating IP of a syslog row, preferring the
// parsed source host over the raw remote endpoint.
func sourceIP(msg *models.SyslogMessage) string {
	if ip := net.ParseIP(msg.SourceHost); ip != nil {
		return ip.String()
	}

	if msg.RemoteEndpoint == "" {
		return ""
	}

	host, _, err := net.SplitHostPort(msg.RemoteEndpoint)
	if err != nil {
		host = msg.RemoteEndpoint
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}

	return ""
}
