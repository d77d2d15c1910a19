// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import "strconv"

// Packet decoder. The wire layout after the header is a flat run of
// fixed-width hex fields:
//
//	[nlines counts][per line: autolag fields][per baseline (i<j ascending):
//	2*crosslag-1 fields]
//
// Field width is bps/4 hex digits. Decoding is all-or-nothing: the first bad
// field aborts with the packet only partially filled.

// parseField parses one fixed-width hex field. Any non-hex byte in the field
// rejects it.
func parseField(data []byte, offset, width int, run string, index int) (uint64, error) {
	if offset+width > len(data) {
		return 0, &ParseError{Field: run, Index: index, Offset: offset, Err: ErrIncomplete}
	}
	v, err := strconv.ParseUint(string(data[offset:offset+width]), 16, 64)
	if err != nil {
		return 0, &ParseError{Field: run, Index: index, Offset: offset, Err: err}
	}
	return v, nil
}

// baselineIndex maps an unordered line pair to its position in the ascending
// (i<j) baseline enumeration. The triangular-number form matches the
// enumeration order exactly; decodePacket walks the enumeration and the scan
// engine uses this formula, and the two are verified against each other in
// tests.
func baselineIndex(i, j, nlines int) int {
	if i > j {
		i, j = j, i
	}
	return i*(2*nlines-i-1)/2 + j - i - 1
}

// decodePacket fills p from one raw packet. The geometry is read from p, which
// the caller allocated against the negotiated session state.
func decodePacket(data []byte, p *Packet, autoLagSize, crossLagSize, bps int) error {
	n := bps / 4
	pos := HeaderSize

	for x := 0; x < p.NLines; x++ {
		v, err := parseField(data, pos, n, "counts", x)
		if err != nil {
			return err
		}
		if v == 0 {
			v = 1
		}
		p.Counts[x] = v
		pos += n
	}

	for x := 0; x < p.NLines; x++ {
		run := p.Autocorrelations[x].Correlations
		for y := 0; y < autoLagSize; y++ {
			v, err := parseField(data, pos, n, "auto", x*autoLagSize+y)
			if err != nil {
				return err
			}
			run[y].Correlations = v
			run[y].Counts = p.Counts[x]
			run[y].Coherence = float64(v) / float64(p.Counts[x])
			pos += n
		}
	}

	crossWidth := 2*crossLagSize - 1
	idx := 0
	for x := 0; x < p.NLines; x++ {
		for y := x + 1; y < p.NLines; y++ {
			counts := (p.Counts[x] + p.Counts[y]) / 2
			if counts == 0 {
				counts = 1
			}
			run := p.Crosscorrelations[idx].Correlations
			for z := 0; z < crossWidth; z++ {
				v, err := parseField(data, pos, n, "cross", idx*crossWidth+z)
				if err != nil {
					return err
				}
				run[z].Correlations = v
				run[z].Counts = counts
				run[z].Coherence = float64(v) / float64(counts)
				pos += n
			}
			idx++
		}
	}
	return nil
}

// GetPacket grabs one fresh packet from the device and decodes it into the
// caller-supplied p. The device must be capturing (EnableCapture) for packets
// to arrive.
func (d *Device) GetPacket(p *Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}

	data, err := d.readFreshPacket(nil)
	if err != nil {
		return err
	}
	if data == nil {
		return ErrNoData
	}
	return decodePacket(data, p, d.autoLagSize, d.crossLagSize, d.bps)
}
