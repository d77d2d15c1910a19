// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// Packets are archived as CBOR streams; the integer keys keep long captures
// compact and the encoding stable across field renames.
func TestPacketCBORRoundTrip(t *testing.T) {
	header := testHeader(16, 2, 8, 2, 1, 0xF, 1000)
	d, tr := negotiated(t, header)
	tr.QueueFrame(testFrame(header, 4, []uint64{100, 50, 25, 75, 10, 20, 30}))

	p := d.NewPacket()
	if err := d.GetPacket(p); err != nil {
		t.Fatalf("GetPacket failed: %v", err)
	}

	data, err := cbor.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, name := range []string{"NLines", "Counts", "Coherence"} {
		if bytes.Contains(data, []byte(name)) {
			t.Errorf("encoding carries field name %q, want integer keys", name)
		}
	}

	var back Packet
	if err := cbor.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.NLines != p.NLines || back.NBaselines != p.NBaselines || back.Tau != p.Tau {
		t.Errorf("geometry = %d/%d/%d, want %d/%d/%d",
			back.NLines, back.NBaselines, back.Tau, p.NLines, p.NBaselines, p.Tau)
	}
	got := back.Crosscorrelations[0].Correlations[0]
	want := p.Crosscorrelations[0].Correlations[0]
	if got != want {
		t.Errorf("cross[0][0] = %+v, want %+v", got, want)
	}
}
