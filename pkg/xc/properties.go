// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"fmt"
	"strconv"
)

// The properties header is a fixed 16-character hexadecimal layout:
//
//	bps(2) nlines-1(2) delaysize(3) autolag-1(2) crosslag-1(2) flags(1) tau(4)
//
// tau is the integration constant in picoseconds; the readout frequency is
// 10^12 / tau.

type properties struct {
	bps          int
	nlines       int
	delaySize    int
	autoLagSize  int
	crossLagSize int
	flags        uint
	tau          uint64
}

// parseProperties decodes the fixed header layout from the first HeaderSize
// bytes of a packet.
func parseProperties(header []byte) (*properties, error) {
	if len(header) < HeaderSize {
		return nil, fmt.Errorf("%w: header too short (%d bytes)", ErrInvalidFormat, len(header))
	}

	widths := []int{2, 2, 3, 2, 2, 1, 4}
	fields := make([]uint64, len(widths))
	pos := 0
	for i, w := range widths {
		v, err := strconv.ParseUint(string(header[pos:pos+w]), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidFormat, i, err)
		}
		fields[i] = v
		pos += w
	}

	return &properties{
		bps:          int(fields[0]),
		nlines:       int(fields[1]) + 1,
		delaySize:    int(fields[2]),
		autoLagSize:  int(fields[3]) + 1,
		crossLagSize: int(fields[4]) + 1,
		flags:        uint(fields[5]),
		tau:          fields[6],
	}, nil
}

// GetProperties performs the negotiation handshake: it toggles the capture
// flag to force a fresh properties packet, then fills the session geometry
// from the packet header. Must be called once after Connect, before any
// decode or scan.
func (d *Device) GetProperties() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}

	d.clearCaptureFlag(CaptureEnable)
	d.setCaptureFlag(CaptureEnable)

	// the device answers the capture toggle with a bare header frame, so
	// drop back to the pre-negotiation frame size before reading; a failed
	// handshake restores the old size so the reader and the geometry
	// accessors keep agreeing
	prevSize := d.packetSize
	d.packetSize = HeaderSize + 1

	var data []byte
	for tries := 0; tries < maxPropertyTries; tries++ {
		packet, _ := d.readValidPacket(nil)
		if packet != nil {
			data = packet
			break
		}
	}
	d.clearCaptureFlag(CaptureEnable)

	if data == nil {
		d.packetSize = prevSize
		return ErrBusy
	}

	props, err := parseProperties(data)
	if err != nil {
		d.packetSize = prevSize
		return err
	}

	d.header = append([]byte(nil), data[:HeaderSize]...)
	d.bps = props.bps
	d.nlines = props.nlines
	d.nbaselines = props.nlines * (props.nlines - 1) / 2
	d.delaySize = props.delaySize
	d.autoLagSize = props.autoLagSize
	d.crossLagSize = props.crossLagSize
	d.flags = props.flags

	// packet size and frequency are derived, never set independently
	d.packetSize = (d.nlines+d.autoLagSize*d.nlines+(2*d.crossLagSize-1)*d.nbaselines)*d.bps/4 +
		HeaderSize + 1
	tau := props.tau
	if tau == 0 {
		tau = 1
	}
	d.frequency = 1_000_000_000_000 / tau

	d.test = make([]byte, d.nlines)
	d.leds = make([]byte, d.nlines)
	return nil
}
