// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"errors"
	"testing"
)

func TestParseProperties(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   properties
	}{
		{
			"two lines sixteen bps",
			"10010080100F03E8",
			properties{bps: 16, nlines: 2, delaySize: 8, autoLagSize: 2,
				crossLagSize: 1, flags: 0xF, tau: 1000},
		},
		{
			"four lines eight bps",
			"0803020030172710",
			properties{bps: 8, nlines: 4, delaySize: 32, autoLagSize: 4,
				crossLagSize: 2, flags: 7, tau: 10000},
		},
		{
			"eight lines four bps",
			"0407100000080001",
			properties{bps: 4, nlines: 8, delaySize: 256, autoLagSize: 1,
				crossLagSize: 1, flags: 8, tau: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProperties([]byte(tt.header))
			if err != nil {
				t.Fatalf("parseProperties(%q) failed: %v", tt.header, err)
			}
			if *got != tt.want {
				t.Errorf("parseProperties(%q) = %+v, want %+v", tt.header, *got, tt.want)
			}
		})
	}
}

func TestParsePropertiesRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"too short", "10010080"},
		{"non-hex field", "G0010080100F03E8"},
		{"non-hex tau", "10010080100F0zE8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseProperties([]byte(tt.header)); !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("parseProperties(%q) = %v, want ErrInvalidFormat", tt.header, err)
			}
		})
	}
}

func TestGetPropertiesGeometry(t *testing.T) {
	tests := []struct {
		name       string
		header     []byte
		nlines     int
		nbaselines int
		packetSize int
		frequency  uint64
	}{
		// packet size = (nlines + autolag*nlines + (2*crosslag-1)*nbase)*bps/4
		//               + header + terminator
		{"2 lines", testHeader(16, 2, 8, 2, 1, 0xF, 1000), 2, 1, 45, 1_000_000_000},
		{"4 lines", testHeader(8, 4, 32, 4, 2, 0x7, 10000), 4, 6, 93, 100_000_000},
		{"8 lines", testHeader(4, 8, 256, 1, 1, 0x8, 1), 8, 28, 61, 1_000_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := negotiated(t, tt.header)

			if d.NLines() != tt.nlines {
				t.Errorf("NLines() = %d, want %d", d.NLines(), tt.nlines)
			}
			if d.NBaselines() != tt.nbaselines {
				t.Errorf("NBaselines() = %d, want %d", d.NBaselines(), tt.nbaselines)
			}
			if want := tt.nlines * (tt.nlines - 1) / 2; d.NBaselines() != want {
				t.Errorf("NBaselines() = %d, want n(n-1)/2 = %d", d.NBaselines(), want)
			}
			if d.PacketSize() != tt.packetSize {
				t.Errorf("PacketSize() = %d, want %d", d.PacketSize(), tt.packetSize)
			}
			if d.Frequency() != tt.frequency {
				t.Errorf("Frequency() = %d, want %d", d.Frequency(), tt.frequency)
			}
		})
	}
}

func TestGetPropertiesTogglesCapture(t *testing.T) {
	header := testHeader(16, 2, 8, 2, 1, 0xF, 1000)
	_, tr := negotiated(t, header)

	// clear, arm, clear again once the header landed
	want := []byte{0x0D, 0x1D, 0x0D}
	got := tr.Sent()
	if len(got) != len(want) {
		t.Fatalf("sent % 02X, want % 02X", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent % 02X, want % 02X", got, want)
		}
	}
}

func TestGetPropertiesSilentDevice(t *testing.T) {
	tr := NewMockTransport()
	d := NewDevice(tr)

	if err := d.GetProperties(); !errors.Is(err, ErrBusy) {
		t.Fatalf("GetProperties on silent device = %v, want ErrBusy", err)
	}
	// session stays un-negotiated
	if d.PacketSize() != HeaderSize+1 {
		t.Errorf("PacketSize() = %d after failed negotiation, want %d",
			d.PacketSize(), HeaderSize+1)
	}
	if d.Header() != "" {
		t.Errorf("Header() = %q after failed negotiation, want empty", d.Header())
	}
}

func TestGetPropertiesMalformedHeader(t *testing.T) {
	tr := NewMockTransport()
	tr.QueueFrame([]byte{Terminator})
	tr.QueueFrame(append([]byte("G0010080100F03E8"), Terminator))

	d := NewDevice(tr)
	if err := d.GetProperties(); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("GetProperties = %v, want ErrInvalidFormat", err)
	}
}

// Renegotiation after a geometry change (new firmware, different device) must
// fully replace the previous session state.
func TestGetPropertiesRenegotiates(t *testing.T) {
	first := testHeader(16, 2, 8, 2, 1, 0xF, 1000)
	d, tr := negotiated(t, first)
	if d.NLines() != 2 {
		t.Fatalf("NLines() = %d, want 2", d.NLines())
	}

	second := testHeader(8, 4, 32, 4, 2, 0x7, 10000)
	// two copies: the pre-read alignment sacrifices the first frame
	tr.QueueFrame(append(append([]byte(nil), second...), Terminator))
	tr.QueueFrame(append(append([]byte(nil), second...), Terminator))

	if err := d.GetProperties(); err != nil {
		t.Fatalf("renegotiation failed: %v", err)
	}
	if d.NLines() != 4 {
		t.Errorf("NLines() = %d after renegotiation, want 4", d.NLines())
	}
	if d.PacketSize() != 93 {
		t.Errorf("PacketSize() = %d after renegotiation, want 93", d.PacketSize())
	}
}

// A failed renegotiation must not disturb the previous session: the frame
// reader keeps the negotiated packet size and the geometry stays live.
func TestGetPropertiesFailedRenegotiationKeepsFraming(t *testing.T) {
	header := testHeader(16, 2, 8, 2, 1, 0xF, 1000)
	d, tr := negotiated(t, header)
	size := d.PacketSize()

	bad := append([]byte("GGGGGGGGGGGGGGGG"), Terminator)
	// two copies: the pre-read alignment sacrifices the first frame
	tr.QueueFrame(bad)
	tr.QueueFrame(bad)

	if err := d.GetProperties(); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("GetProperties = %v, want ErrInvalidFormat", err)
	}
	if d.PacketSize() != size {
		t.Errorf("PacketSize() = %d after failed renegotiation, want %d", d.PacketSize(), size)
	}
	if d.NLines() != 2 || d.CrossLagSize() != 1 {
		t.Errorf("geometry disturbed: %d lines, cross lag %d", d.NLines(), d.CrossLagSize())
	}

	// a silent device on renegotiation restores the framing the same way
	if err := d.GetProperties(); !errors.Is(err, ErrBusy) {
		t.Fatalf("GetProperties on silent device = %v, want ErrBusy", err)
	}
	if d.PacketSize() != size {
		t.Errorf("PacketSize() = %d after silent renegotiation, want %d", d.PacketSize(), size)
	}
}
