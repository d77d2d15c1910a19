// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// testHeader builds a 16-character properties header for the given geometry.
func testHeader(bps, nlines, delaySize, autoLag, crossLag, flags int, tau uint64) []byte {
	return []byte(fmt.Sprintf("%02X%02X%03X%02X%02X%01X%04X",
		bps, nlines-1, delaySize, autoLag-1, crossLag-1, flags, tau))
}

// testFrame builds a full wire packet: header, fixed-width hex fields,
// terminator.
func testFrame(header []byte, width int, fields []uint64) []byte {
	frame := append([]byte(nil), header...)
	for _, f := range fields {
		frame = append(frame, []byte(fmt.Sprintf("%0*X", width, f))...)
	}
	return append(frame, Terminator)
}

// negotiated returns a connected device whose geometry was filled via the
// real handshake against the mock transport.
func negotiated(t *testing.T, header []byte) (*Device, *MockTransport) {
	t.Helper()

	tr := NewMockTransport()
	// a leading terminator lets the pre-negotiation align find a frame start
	tr.QueueFrame([]byte{Terminator})
	tr.QueueFrame(append(append([]byte(nil), header...), Terminator))

	d := NewDevice(tr)
	if err := d.GetProperties(); err != nil {
		t.Fatalf("GetProperties failed: %v", err)
	}
	return d, tr
}

func TestConnectStateAndDisconnect(t *testing.T) {
	tr := NewMockTransport()
	d := NewDevice(tr)

	if !d.IsConnected() {
		t.Fatal("expected connected after NewDevice")
	}
	if d.PacketSize() != HeaderSize+1 {
		t.Errorf("pre-negotiation packet size = %d, want %d", d.PacketSize(), HeaderSize+1)
	}
	if d.BaudRate() != BaseRate {
		t.Errorf("BaudRate() = %d, want %d", d.BaudRate(), BaseRate)
	}

	if err := d.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if !tr.Closed {
		t.Error("transport not closed on disconnect")
	}
	if d.IsConnected() {
		t.Error("still connected after disconnect")
	}

	if err := d.SendCommand(CmdClear, 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendCommand after disconnect = %v, want ErrNotConnected", err)
	}
	if err := d.GetProperties(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetProperties after disconnect = %v, want ErrNotConnected", err)
	}
	if _, _, err := d.ScanAutocorrelations(0, 0, 4, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("scan after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestSetBaudRate(t *testing.T) {
	tr := NewMockTransport()
	d := NewDevice(tr)

	if err := d.SetBaudRate(Rate230400); err != nil {
		t.Fatalf("SetBaudRate failed: %v", err)
	}
	if d.BaudRate() != BaseRate<<2 {
		t.Errorf("BaudRate() = %d, want %d", d.BaudRate(), BaseRate<<2)
	}
	if len(tr.RateChanges) != 1 || tr.RateChanges[0] != BaseRate<<2 {
		t.Errorf("transport rate changes = %v, want [%d]", tr.RateChanges, BaseRate<<2)
	}
}

// End to end: negotiate a 2-line device, then decode a crafted packet whose
// correlation payload is all zero. Every coherence must come out 0.0 with
// counts coerced to at least 1.
func TestNegotiateAndDecodeAllZero(t *testing.T) {
	header := testHeader(16, 2, 8, 2, 1, 0xF, 1000)
	d, tr := negotiated(t, header)

	if d.NLines() != 2 {
		t.Fatalf("NLines() = %d, want 2", d.NLines())
	}
	if d.NBaselines() != 1 {
		t.Fatalf("NBaselines() = %d, want 1", d.NBaselines())
	}
	if d.Frequency() != 1_000_000_000 {
		t.Errorf("Frequency() = %d, want 1000000000", d.Frequency())
	}
	if d.Header() != string(header) {
		t.Errorf("Header() = %q, want %q", d.Header(), header)
	}

	// 2 counts + 2x2 auto + 1 cross, all zero, 4 hex digits each
	tr.QueueFrame(testFrame(header, 4, make([]uint64, 7)))

	p := d.NewPacket()
	if err := d.GetPacket(p); err != nil {
		t.Fatalf("GetPacket failed: %v", err)
	}

	for x, c := range p.Counts {
		if c != 1 {
			t.Errorf("Counts[%d] = %d, want 1 (zero coerced)", x, c)
		}
	}
	for x := range p.Autocorrelations {
		for y, c := range p.Autocorrelations[x].Correlations {
			if c.Coherence != 0.0 {
				t.Errorf("auto[%d][%d] coherence = %v, want 0.0", x, y, c.Coherence)
			}
			if c.Counts < 1 {
				t.Errorf("auto[%d][%d] counts = %d, want >= 1", x, y, c.Counts)
			}
		}
	}
	for x := range p.Crosscorrelations {
		for y, c := range p.Crosscorrelations[x].Correlations {
			if c.Coherence != 0.0 {
				t.Errorf("cross[%d][%d] coherence = %v, want 0.0", x, y, c.Coherence)
			}
		}
	}
}

func TestFormatProperties(t *testing.T) {
	header := testHeader(16, 2, 8, 2, 1, 0xF, 1000)
	d, _ := negotiated(t, header)

	out := FormatProperties(d)
	for _, want := range []string{"Lines:", "Baselines:", "crosscorrelator", "psu"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatProperties missing %q in:\n%s", want, out)
		}
	}
}
