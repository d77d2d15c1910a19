// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"sync"
	"time"
)

// defaultReadTimeout bounds one transport read attempt. The frame reader's
// retry budget bounds total blocking time to timeout * maxFrameRetries.
const defaultReadTimeout = 500 * time.Millisecond

// Device is one correlator session. It owns the transport and serializes all
// command/response exchanges behind a single lock: the protocol is strictly
// half-duplex, so mutual exclusion is a correctness requirement, not an
// optimization.
type Device struct {
	mu sync.Mutex

	tr        Transport
	connected bool
	rate      BaudRate
	timeout   time.Duration

	// negotiated geometry
	header       []byte // 16-byte resync anchor, verbatim from the device
	bps          int
	nlines       int
	nbaselines   int
	delaySize    int
	autoLagSize  int
	crossLagSize int
	flags        uint
	frequency    uint64
	packetSize   int

	// session command state
	frequencyDivider int
	voltage          byte
	test             []byte // per-line test-mode byte
	leds             []byte // per-line LED byte
	captureFlags     byte
}

// NewDevice wraps an already-open transport in a session. The session starts
// un-negotiated: the packet size is the bare header frame until GetProperties
// fills in the geometry.
func NewDevice(tr Transport) *Device {
	d := &Device{
		tr:      tr,
		timeout: defaultReadTimeout,
	}
	d.reset()
	d.connected = true
	return d
}

// Connect opens the named serial port at the correlator's base rate and wraps
// it in a session.
func Connect(portName string) (*Device, error) {
	tr, err := OpenSerial(portName)
	if err != nil {
		return nil, err
	}
	return NewDevice(tr), nil
}

// reset zeroes the session back to its pre-negotiation defaults.
func (d *Device) reset() {
	d.rate = Rate57600
	d.header = nil
	d.bps = 0
	d.nlines = 0
	d.nbaselines = 0
	d.delaySize = 0
	d.autoLagSize = 0
	d.crossLagSize = 0
	d.flags = 0
	d.frequency = 0
	d.frequencyDivider = 0
	d.packetSize = HeaderSize + 1 // bare header frame plus terminator
	d.test = nil
	d.leds = nil
	d.captureFlags = 0
}

// Disconnect drops the device back to its base rate and closes the transport.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	d.connected = false

	// best effort: the device keeps the commanded rate across sessions
	d.sendCommand(CmdSetBaudRate, byte(Rate57600))
	err := d.tr.Close()
	d.reset()
	return err
}

// IsConnected reports whether the session holds an open transport.
func (d *Device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// SetReadTimeout bounds a single transport read attempt. Shrinking it shortens
// scan cancellation latency at the cost of more frame retries.
func (d *Device) SetReadTimeout(timeout time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = timeout
}

// BaudRate returns the effective serial rate in baud.
func (d *Device) BaudRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return BaseRate << d.rate
}

// SetBaudRate commands the device to a new rate, then retunes the transport to
// follow it.
func (d *Device) SetBaudRate(rate BaudRate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if err := d.sendCommand(CmdSetBaudRate, byte(rate)); err != nil {
		return err
	}
	d.rate = rate
	return d.tr.SetRate(BaseRate << rate)
}

// Header returns the negotiated 16-byte device header, empty before
// negotiation.
func (d *Device) Header() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.header)
}

// BPS returns the bits per sample.
func (d *Device) BPS() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bps
}

// NLines returns the number of input lines.
func (d *Device) NLines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nlines
}

// NBaselines returns the number of unordered line pairs.
func (d *Device) NBaselines() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nbaselines
}

// DelaySize returns the delay buffer depth in clock cycles.
func (d *Device) DelaySize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delaySize
}

// AutoLagSize returns the autocorrelator lag buffer depth.
func (d *Device) AutoLagSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.autoLagSize
}

// CrossLagSize returns the crosscorrelator lag buffer depth.
func (d *Device) CrossLagSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.crossLagSize
}

// Frequency returns the maximum readout frequency in Hz.
func (d *Device) Frequency() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frequency
}

// FrequencyDivider returns the commanded clock divider power of two.
func (d *Device) FrequencyDivider() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frequencyDivider
}

// PacketSize returns the wire size of one packet, terminator included.
func (d *Device) PacketSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.packetSize
}

// PacketTime returns the serial transmission time of one packet in
// microseconds.
func (d *Device) PacketTime() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return 10_000_000 * d.packetSize / (BaseRate << d.rate)
}

// HasCrosscorrelator reports whether the device can cross-correlate.
func (d *Device) HasCrosscorrelator() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags&FlagHasCrosscorrelator != 0
}

// HasPSU reports whether the device carries a controllable line supply.
func (d *Device) HasPSU() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags&FlagHasPSU != 0
}

// HasLedFlags reports whether the device has drivable LED lines.
func (d *Device) HasLedFlags() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags&FlagHasLedFlags != 0
}

// HasLiveAutocorrelator reports live spectrum analysis capability.
func (d *Device) HasLiveAutocorrelator() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags&FlagLiveAutocorrelator != 0
}

// HasLiveCrosscorrelator reports live cross-correlation capability.
func (d *Device) HasLiveCrosscorrelator() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags&FlagLiveCrosscorrelator != 0
}

// TestFlags returns the line's current test-mode byte.
func (d *Device) TestFlags(line int) TestFlag {
	d.mu.Lock()
	defer d.mu.Unlock()
	if line < 0 || line >= len(d.test) {
		return TestNone
	}
	return TestFlag(d.test[line])
}

// Leds returns the line's current LED mask.
func (d *Device) Leds(line int) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if line < 0 || line >= len(d.leds) {
		return 0
	}
	return d.leds[line]
}
