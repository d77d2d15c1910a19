// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

// Correlation is one correlated/pulse count pair at a single lag offset.
// Counts is never zero: a zero pulse count is remapped to 1 so Coherence is
// always well defined.
type Correlation struct {
	Correlations uint64  `cbor:"1,keyasint"` // correlated pulse pairs
	Counts       uint64  `cbor:"2,keyasint"` // total pulse count
	Coherence    float64 `cbor:"3,keyasint"` // Correlations / Counts
}

// Sample is one line's (or baseline's) correlation profile: a fixed-length
// run of Correlation values, one per lag step.
type Sample struct {
	Correlations []Correlation `cbor:"1,keyasint"`
}

// LagSize returns the number of lag steps in the sample.
func (s *Sample) LagSize() int {
	return len(s.Correlations)
}

// allocSamples builds n zeroed samples of the given lag width.
func allocSamples(n, lagSize int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i].Correlations = make([]Correlation, lagSize)
	}
	return samples
}

// Packet is a full device snapshot at a point in time: per-line pulse counts,
// an autocorrelation Sample per line and a crosscorrelation Sample per
// unordered line pair, plus the geometry captured at allocation time. The
// caller that allocates a Packet owns it and everything nested inside.
type Packet struct {
	NLines     int    `cbor:"1,keyasint"`
	NBaselines int    `cbor:"2,keyasint"`
	BPS        int    `cbor:"3,keyasint"`
	Tau        uint64 `cbor:"4,keyasint"` // integration period in picoseconds

	Counts            []uint64 `cbor:"5,keyasint"`
	Autocorrelations  []Sample `cbor:"6,keyasint"`
	Crosscorrelations []Sample `cbor:"7,keyasint"`
}

// NewPacket allocates a packet sized for the negotiated geometry. Call after
// GetProperties.
func (d *Device) NewPacket() *Packet {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := &Packet{
		NLines:     d.nlines,
		NBaselines: d.nbaselines,
		BPS:        d.bps,
	}
	if d.frequency > 0 {
		p.Tau = (1_000_000_000_000 << d.frequencyDivider) / d.frequency
	}
	crossWidth := 0
	if d.crossLagSize > 0 {
		crossWidth = 2*d.crossLagSize - 1
	}
	p.Counts = make([]uint64, d.nlines)
	p.Autocorrelations = allocSamples(d.nlines, d.autoLagSize)
	p.Crosscorrelations = allocSamples(d.nbaselines, crossWidth)
	return p
}
