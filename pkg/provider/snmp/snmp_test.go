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

package snmp

import (
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArpEntry(t *testing.T) {
	pdu := gosnmp.SnmpPDU{
		Name:  ".1.3.6.1.2.1.4.22.1.2.4.192.168.1.50",
		Type:  gosnmp.OctetString,
		Value: []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01},
	}

	client, ok := arpEntry(pdu)
	require.True(t, ok)

	assert.Equal(t, "AA:BB:CC:DD:EE:01", client.MAC)
	assert.Equal(t, "192.168.1.50", client.IP)
}

func TestArpEntryRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		pdu  gosnmp.SnmpPDU
	}{
		{
			name: "wrong type",
			pdu: gosnmp.SnmpPDU{
				Name:  ".1.3.6.1.2.1.4.22.1.2.4.192.168.1.50",
				Type:  gosnmp.Integer,
				Value: 7,
			},
		},
		{
			name: "truncated address",
			pdu: gosnmp.SnmpPDU{
				Name:  ".1.3.6.1.2.1.4.22.1.2.4.192.168.1.50",
				Type:  gosnmp.OctetString,
				Value: []byte{0xAA, 0xBB},
			},
		},
		{
			name: "bad oid index",
			pdu: gosnmp.SnmpPDU{
				Name:  ".1.3.6.1.2.1.4.22.1.2.4.192.168",
				Type:  gosnmp.OctetString,
				Value: []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x01},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := arpEntry(tt.pdu)
			assert.False(t, ok)
		})
	}
}

func TestIndexToIP(t *testing.T) {
	assert.Equal(t, "10.0.0.254", indexToIP(".1.3.6.1.2.1.4.22.1.2.12.10.0.0.254"))
	assert.Empty(t, indexToIP(".1.3.6.1.2.1.4.22.1.2.12.10.0.0"))
	assert.Empty(t, indexToIP(".1.3.6.1.2.1.4.22.1.2.12.10.0.0.999"))
}
