// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"bytes"
	"errors"
	"testing"
)

// smallHeader is a 2-line, 4 bps geometry: packets are 24 bytes on the wire
// (16 header + 7 single-digit fields + terminator).
func smallHeader() []byte {
	return testHeader(4, 2, 8, 2, 1, 0x3, 1000)
}

func smallFrame(fields ...uint64) []byte {
	return testFrame(smallHeader(), 1, fields)
}

func validSmallFrame() []byte {
	return smallFrame(0xF, 0x3, 0, 0, 0, 0, 0)
}

func TestReadPacketClassification(t *testing.T) {
	header := smallHeader()

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{
			"well formed",
			validSmallFrame(),
			nil,
		},
		{
			// terminator before the header boundary
			"early terminator",
			append(append(bytes.Repeat([]byte{'0'}, 9), Terminator),
				bytes.Repeat([]byte{'0'}, 14)...),
			ErrShortFrame,
		},
		{
			// full-length frame, terminator past the header but misplaced,
			// prefix not ours
			"foreign header",
			append(append(bytes.Repeat([]byte{'F'}, 20), Terminator), 'A', 'B', 'C'),
			ErrInvalidHeader,
		},
		{
			// stream dries up mid-packet
			"truncated stream",
			append(append([]byte(nil), header...), '0', '1'),
			ErrIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tr := negotiated(t, header)
			tr.QueueFrame(tt.frame)

			buf := make([]byte, d.packetSize)
			err := d.readPacket(buf)
			if !errors.Is(err, tt.want) {
				t.Errorf("readPacket = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadPacketTimeout(t *testing.T) {
	d, _ := negotiated(t, smallHeader())

	buf := make([]byte, d.packetSize)
	if err := d.readPacket(buf); !errors.Is(err, ErrTimeout) {
		t.Errorf("readPacket on silent transport = %v, want ErrTimeout", err)
	}
}

// A truncated frame followed by intact frames must recover within the retry
// budget: the misread spans into the next frame, the resync consumes its
// remainder, and the frame after that reads clean.
func TestReadValidPacketRecoversFromTruncation(t *testing.T) {
	d, tr := negotiated(t, smallHeader())

	tr.QueueFrame(append(bytes.Repeat([]byte{'0'}, 9), Terminator))
	tr.QueueFrame(validSmallFrame())
	tr.QueueFrame(validSmallFrame())

	data, err := d.readValidPacket(nil)
	if err != nil {
		t.Fatalf("readValidPacket = %v, want recovery", err)
	}
	if data == nil {
		t.Fatal("readValidPacket returned no packet")
	}
	if !bytes.Equal(data, validSmallFrame()) {
		t.Errorf("recovered packet = %q", data)
	}
	if tr.Pending() != 0 {
		t.Errorf("%d bytes left unconsumed", tr.Pending())
	}
}

// garbageUnit is sized so one read-and-resync cycle consumes exactly one unit:
// a full packet's worth of junk with no terminator, then the terminator the
// resync stops on.
func garbageUnit(packetSize int) []byte {
	return append(bytes.Repeat([]byte{'X'}, packetSize), Terminator)
}

func TestReadValidPacketBudgetExhausted(t *testing.T) {
	d, tr := negotiated(t, smallHeader())

	for i := 0; i < maxFrameRetries+1; i++ {
		tr.QueueFrame(garbageUnit(d.packetSize))
	}
	tr.QueueFrame(validSmallFrame())

	// budget of 8 burns on the first 8 garbage units
	data, err := d.readValidPacket(nil)
	if err != nil {
		t.Fatalf("readValidPacket = %v, want nil (budget exhausted is not an error)", err)
	}
	if data != nil {
		t.Fatalf("readValidPacket returned %q, want no packet", data)
	}

	// the next call clears the remaining garbage and lands on the real frame
	data, err = d.readValidPacket(nil)
	if err != nil {
		t.Fatalf("second readValidPacket = %v", err)
	}
	if !bytes.Equal(data, validSmallFrame()) {
		t.Errorf("second readValidPacket = %q", data)
	}
}

func TestReadValidPacketTimeoutIsTerminal(t *testing.T) {
	d, tr := negotiated(t, smallHeader())

	tr.TimeoutReads = 1
	data, err := d.readValidPacket(nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("readValidPacket = %v, want ErrTimeout", err)
	}
	if data != nil {
		t.Errorf("got packet %q on timeout", data)
	}
	// exactly one read: timeouts must not be retried
	if tr.ReadCalls != 2 { // one for negotiation, one here
		t.Errorf("ReadCalls = %d, want 2", tr.ReadCalls)
	}
}

func TestReadFreshPacketFlushes(t *testing.T) {
	d, tr := negotiated(t, smallHeader())
	flushes := tr.FlushRXCalls

	tr.QueueFrame(validSmallFrame())
	data, err := d.readFreshPacket(nil)
	if err != nil || data == nil {
		t.Fatalf("readFreshPacket = %q, %v", data, err)
	}
	if tr.FlushRXCalls != flushes+1 {
		t.Errorf("FlushRXCalls = %d, want %d", tr.FlushRXCalls, flushes+1)
	}
}
