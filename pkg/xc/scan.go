// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"errors"
	"math"
	"sync/atomic"
)

// Scan engine. A scan arms capture, programs the starting lag and raises the
// line's scan test flag; the device then steps its lag register on its own,
// emitting one packet per step. Each step decodes the target line's (or
// baseline's) lag run into one Sample slot. Scans can run for minutes, so
// cancellation is cooperative: the interrupt flag is polled once per step
// boundary.

// ScanProgress carries the caller-facing side of a running scan: a completion
// fraction and a cooperative interrupt flag. Both are safe to access from a
// goroutine other than the one scanning. A nil *ScanProgress is valid and
// disables both.
type ScanProgress struct {
	percent   atomic.Uint64 // float64 bits
	interrupt atomic.Bool
}

// Percent returns the completion percentage accumulated so far.
func (p *ScanProgress) Percent() float64 {
	if p == nil {
		return 0
	}
	return math.Float64frombits(p.percent.Load())
}

// Interrupt requests the scan stop at the next step boundary.
func (p *ScanProgress) Interrupt() {
	if p != nil {
		p.interrupt.Store(true)
	}
}

// Interrupted reports whether an interrupt was requested.
func (p *ScanProgress) Interrupted() bool {
	return p != nil && p.interrupt.Load()
}

func (p *ScanProgress) add(delta float64) {
	if p == nil {
		return
	}
	for {
		old := p.percent.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if p.percent.CompareAndSwap(old, next) {
			return
		}
	}
}

// StartAutocorrelationScan arms capture, programs the line's starting auto
// lag and raises its ScanAuto test flag.
func (d *Device) StartAutocorrelationScan(index, start int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.startScan(index, start, true)
}

// EndAutocorrelationScan clears the line's ScanAuto flag, drains the device's
// in-flight response and stops capture.
func (d *Device) EndAutocorrelationScan(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.endScan(index, true)
}

// StartCrosscorrelationScan arms capture, programs the line's starting cross
// lag and raises its ScanCross test flag.
func (d *Device) StartCrosscorrelationScan(index, start int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.startScan(index, start, false)
}

// EndCrosscorrelationScan clears the line's ScanCross flag, drains the
// device's in-flight response and stops capture.
func (d *Device) EndCrosscorrelationScan(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.endScan(index, false)
}

func (d *Device) startScan(index, start int, auto bool) error {
	if err := d.setCaptureFlag(CaptureEnable); err != nil {
		return err
	}
	if err := d.setLag(index, start, auto); err != nil {
		return err
	}
	if auto {
		return d.setTest(index, ScanAuto)
	}
	return d.setTest(index, ScanCross)
}

func (d *Device) endScan(index int, auto bool) error {
	flag := ScanCross
	if auto {
		flag = ScanAuto
	}
	if err := d.clearTest(index, flag); err != nil {
		return err
	}
	d.readFreshPacket(nil) // flush the device's in-flight response
	return d.clearCaptureFlag(CaptureEnable)
}

// ScanAutocorrelations sweeps the line's auto lag from max(start, 0) for up
// to length steps, bounded by the delay buffer, capturing one Sample of
// autoLagSize correlations per step. It returns the samples and the number of
// fully captured steps; on interrupt the partial samples are still returned.
func (d *Device) ScanAutocorrelations(index, start, length int, prog *ScanProgress) ([]Sample, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, 0, ErrNotConnected
	}
	if length <= 0 {
		return nil, 0, nil
	}

	samples := allocSamples(length, d.autoLagSize)

	if start > d.delaySize-2 {
		start = d.delaySize - 2
	}
	if start < 0 {
		start = 0
	}
	end := start + length
	if end > d.delaySize-1 {
		end = d.delaySize - 1
	}

	n := d.bps / 4
	buf := make([]byte, d.packetSize)

	// the cross lag register would offset the sweep; park it at zero
	d.setLag(index, 0, false)
	if err := d.startScan(index, start, true); err != nil {
		return samples, 0, err
	}

	var scanErr error
	i := 0
	pos := start
	for i < length {
		if prog.Interrupted() || pos >= end {
			break
		}
		data, err := d.readValidPacket(buf)
		if errors.Is(err, ErrTimeout) {
			scanErr = err
			break
		}
		if data == nil {
			continue
		}
		if err := d.decodeAutoStep(data, index, n, samples[i].Correlations); err != nil {
			continue
		}
		prog.add(100.0 / float64(length))
		pos++
		i++
	}

	if err := d.endScan(index, true); err != nil && scanErr == nil {
		scanErr = err
	}
	return samples, i, scanErr
}

// decodeAutoStep extracts one scan step: the line's pulse count and its full
// autocorrelation lag run.
func (d *Device) decodeAutoStep(data []byte, index, n int, out []Correlation) error {
	counts, err := parseField(data, HeaderSize+index*n, n, "counts", index)
	if err != nil {
		return err
	}
	counts |= 1

	pos := HeaderSize + n*d.nlines + n*index*d.autoLagSize
	for y := 0; y < d.autoLagSize; y++ {
		v, err := parseField(data, pos, n, "auto", y)
		if err != nil {
			return err
		}
		out[y].Correlations = v
		out[y].Counts = counts
		out[y].Coherence = float64(v) / float64(counts)
		pos += n
	}
	return nil
}

// ScanCrosscorrelations sweeps a baseline's cross lag on both sides of zero
// in two back-to-back sub-sweeps: first line2's lag is held while line1 sweeps
// for the first size/2 steps, then the roles reverse for the remainder. size
// is floored to 5. Each step captures one Sample of width 2*crossLagSize-1.
func (d *Device) ScanCrosscorrelations(index1, index2, start1, start2, size int, prog *ScanProgress) ([]Sample, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, 0, ErrNotConnected
	}
	// no cross lag geometry to sweep before negotiation
	if d.crossLagSize == 0 {
		return nil, 0, nil
	}

	if size < 5 {
		size = 5
	}
	samples := allocSamples(size, 2*d.crossLagSize-1)

	if start1 < d.delaySize-2 {
		start1 = d.delaySize - 2
	}
	if start2 < d.delaySize-2 {
		start2 = d.delaySize - 2
	}

	completed := 0
	var scanErr error

	// first half: line2 fixed, line1 sweeps
	d.setLag(index2, start2, false)
	d.setLag(index1, 0, true)
	d.setLag(index2, 0, true)
	if err := d.startScan(index1, start1, false); err != nil {
		return samples, 0, err
	}
	half := size / 2
	completed, scanErr = d.sweepCross(index1, index2, samples, 0, half, size, prog)
	if err := d.endScan(index1, false); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr != nil || prog.Interrupted() {
		return samples, completed, scanErr
	}

	// second half: roles reversed
	d.setLag(index1, start1, false)
	d.setLag(index1, 0, true)
	d.setLag(index2, 0, true)
	if err := d.startScan(index2, start2, false); err != nil {
		return samples, completed, err
	}
	second, err := d.sweepCross(index1, index2, samples, half, size, size, prog)
	completed += second - half
	if err != nil {
		scanErr = err
	}
	if err := d.endScan(index2, false); err != nil && scanErr == nil {
		scanErr = err
	}
	return samples, completed, scanErr
}

// sweepCross captures steps [from, to) of a crosscorrelation scan into
// samples, returning the index one past the last captured step.
func (d *Device) sweepCross(index1, index2 int, samples []Sample, from, to, size int, prog *ScanProgress) (int, error) {
	n := d.bps / 4
	buf := make([]byte, d.packetSize)

	i := from
	for i < to {
		if prog.Interrupted() {
			break
		}
		data, err := d.readValidPacket(buf)
		if errors.Is(err, ErrTimeout) {
			return i, err
		}
		if data == nil {
			continue
		}
		if err := d.decodeCrossStep(data, index1, index2, n, samples[i].Correlations); err != nil {
			continue
		}
		prog.add(50.0 / float64(size))
		i++
	}
	return i, nil
}

// decodeCrossStep extracts one scan step: the baseline's averaged pulse count
// and its centered crosscorrelation lag run.
func (d *Device) decodeCrossStep(data []byte, index1, index2, n int, out []Correlation) error {
	c1, err := parseField(data, HeaderSize+index1*n, n, "counts", index1)
	if err != nil {
		return err
	}
	c2, err := parseField(data, HeaderSize+index2*n, n, "counts", index2)
	if err != nil {
		return err
	}
	counts := (c1 + c2) / 2
	if counts == 0 {
		counts = 1
	}

	crossWidth := 2*d.crossLagSize - 1
	pos := HeaderSize + n*(d.nlines+d.autoLagSize*d.nlines) +
		n*crossWidth*baselineIndex(index1, index2, d.nlines)
	for y := 0; y < crossWidth; y++ {
		v, err := parseField(data, pos, n, "cross", y)
		if err != nil {
			return err
		}
		out[y].Correlations = v
		out[y].Counts = counts
		out[y].Coherence = float64(v) / float64(counts)
		pos += n
	}
	return nil
}
