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
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/lanpulse/pkg/logger"
	"github.com/carverauto/lanpulse/pkg/models"
	"github.com/carverauto/lanpulse/pkg/settings"
)

type fakeSyslogStore struct {
	rows  []*models.SyslogMessage
	links []*models.SyslogDeviceLink
}

func (f *fakeSyslogStore) ListUnlinkedSyslogSince(_ context.Context, since time.Time, _ int) ([]*models.SyslogMessage, error) {
	var out []*models.SyslogMessage

	for _, row := range f.rows {
		if !row.ReceivedAt.Before(since) {
			out = append(out, row)
		}
	}

	return out, nil
}

func (f *fakeSyslogStore) InsertSyslogLink(_ context.Context, link *models.SyslogDeviceLink) error {
	clone := *link
	clone.ID = int64(len(f.links) + 1)
	f.links = append(f.links, &clone)

	return nil
}

func (f *fakeSyslogStore) linksFor(deviceID int64) []*models.SyslogDeviceLink {
	var out []*models.SyslogDeviceLink

	for _, l := range f.links {
		if l.DeviceID == deviceID {
			out = append(out, l)
		}
	}

	return out
}

type fakeDeviceStore struct {
	devices []*models.Device
}

func (f *fakeDeviceStore) ListDevices(_ context.Context, _ bool) ([]*models.Device, error) {
	return f.devices, nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Bool(_ context.Context, key string, def bool) bool {
	if v, ok := f.values[key]; ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}

	return def
}

func (f *fakeSettings) Float(_ context.Context, key string, def float64) float64 {
	if v, ok := f.values[key]; ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}

	return def
}

func (f *fakeSettings) Minutes(_ context.Context, key string, defMinutes int) time.Duration {
	if v, ok := f.values[key]; ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			return time.Duration(parsed) * time.Minute
		}
	}

	return time.Duration(defMinutes) * time.Minute
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func device(id int64, mac, ip, hostname string, lastSeen time.Time) *models.Device {
	return &models.Device{
		ID:        id,
		MAC:       mac,
		PrimaryIP: ip,
		Hostname:  hostname,
		LastSeen:  lastSeen,
		IsActive:  true,
	}
}

func syslogRow(id int64, sourceHost, message string) *models.SyslogMessage {
	return &models.SyslogMessage{
		ID:         id,
		ReceivedAt: testNow.Add(-5 * time.Minute),
		SourceHost: sourceHost,
		Message:    message,
	}
}

func newTestCorrelator(rows []*models.SyslogMessage, devices []*models.Device, values map[string]string) (*Correlator, *fakeSyslogStore) {
	store := &fakeSyslogStore{rows: rows}
	c := New(store, &fakeDeviceStore{devices: devices}, &fakeSettings{values: values}, logger.NewTestLogger())

	return c, store
}

func TestMACMentionLinksAtFullConfidence(t *testing.T) {
	rows := []*models.SyslogMessage{
		syslogRow(1, "10.0.0.1", "DHCPACK on 192.168.1.50 to aa:bb:cc:dd:ee:01 via br-lan"),
	}
	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "laptop", testNow),
	}

	c, store := newTestCorrelator(rows, devices, nil)

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 1, linked)

	link := store.links[0]
	assert.Equal(t, models.MatchMethodMAC, link.MatchMethod)
	assert.InDelta(t, 1.0, link.Confidence, 0.001)
}

func TestConfidenceOrdering(t *testing.T) {
	// One row carries evidence for three different devices: a MAC mention,
	// a source-IP match, and a hostname substring. Each device takes its
	// strongest applicable rule.
	rows := []*models.SyslogMessage{
		syslogRow(1, "192.168.1.60", "client aa:bb:cc:dd:ee:01 roamed; forwarded for printer-3f"),
	}
	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "laptop", testNow),
		device(2, "AA:BB:CC:DD:EE:02", "192.168.1.60", "nas", testNow),
		device(3, "AA:BB:CC:DD:EE:03", "192.168.1.70", "printer-3f", testNow),
	}

	c, store := newTestCorrelator(rows, devices, nil)

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, linked)

	macLinks := store.linksFor(1)
	require.Len(t, macLinks, 1)
	assert.Equal(t, models.MatchMethodMAC, macLinks[0].MatchMethod)
	assert.InDelta(t, 1.0, macLinks[0].Confidence, 0.001)

	ipLinks := store.linksFor(2)
	require.Len(t, ipLinks, 1)
	assert.Equal(t, models.MatchMethodIP, ipLinks[0].MatchMethod)
	assert.InDelta(t, 0.8, ipLinks[0].Confidence, 0.001)

	hostLinks := store.linksFor(3)
	require.Len(t, hostLinks, 1)
	assert.Equal(t, models.MatchMethodHostname, hostLinks[0].MatchMethod)
	assert.InDelta(t, 0.5, hostLinks[0].Confidence, 0.001)
}

func TestIPConfidenceDecays(t *testing.T) {
	rows := []*models.SyslogMessage{
		syslogRow(1, "192.168.1.50", "connection refused"),
	}

	// Half-life 30 minutes; the device was last seen 90 minutes ago, so
	// 0.8 has halved three times down to 0.1, below the 0.3 floor.
	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "laptop", testNow.Add(-90*time.Minute)),
	}

	c, store := newTestCorrelator(rows, devices, nil)

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, linked)
	assert.Empty(t, store.links, "decayed IP matches below the floor must not be recorded")
}

func TestFreshIPMatchLinks(t *testing.T) {
	rows := []*models.SyslogMessage{
		syslogRow(1, "192.168.1.50", "connection refused"),
	}
	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "laptop", testNow),
	}

	c, store := newTestCorrelator(rows, devices, nil)

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	require.Equal(t, 1, linked)
	assert.Equal(t, models.MatchMethodIP, store.links[0].MatchMethod)
	assert.InDelta(t, 0.8, store.links[0].Confidence, 0.001)
}

func TestShortHostnamesAreNotEvidence(t *testing.T) {
	rows := []*models.SyslogMessage{
		syslogRow(1, "10.0.0.1", "tv schedule updated"),
	}
	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "tv", testNow),
	}

	c, store := newTestCorrelator(rows, devices, nil)

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, linked)
	assert.Empty(t, store.links)
}

func TestDisabledCorrelatorIsNoOp(t *testing.T) {
	rows := []*models.SyslogMessage{
		syslogRow(1, "192.168.1.50", "client aa:bb:cc:dd:ee:01 associated"),
	}
	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "laptop", testNow),
	}

	c, store := newTestCorrelator(rows, devices, map[string]string{
		settings.KeyCorrelatorEnabled: "false",
	})

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, linked)
	assert.Empty(t, store.links)
}

func TestRowsOutsideLookbackIgnored(t *testing.T) {
	old := syslogRow(1, "192.168.1.50", "stale line")
	old.ReceivedAt = testNow.Add(-3 * time.Hour)

	devices := []*models.Device{
		device(1, "AA:BB:CC:DD:EE:01", "192.168.1.50", "laptop", testNow),
	}

	c, store := newTestCorrelator([]*models.SyslogMessage{old}, devices, nil)

	linked, err := c.Correlate(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, linked)
	assert.Empty(t, store.links)
}
