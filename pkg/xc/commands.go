// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

// Command encoding. Every command is a single byte: the opcode in the bits
// its layout reserves, OR'd with the nibble-swapped parameter masked to the
// parameter bits. Wider values are split into 2- or 3-bit fields, each sent
// as its own command tagged with an increasing field index in the upper bits.

// nibbleSwap exchanges the high and low 4-bit halves of a byte, the firmware's
// parameter convention. It is its own inverse.
func nibbleSwap(b byte) byte {
	return b<<4 | b>>4
}

// encodeCommand builds the wire byte for an opcode/parameter pair.
func encodeCommand(op Command, value byte) byte {
	return byte(op) | nibbleSwap(value)&commandParamMask
}

// SendCommand sends one raw command byte, flushing the outbound buffer first.
func (d *Device) SendCommand(op Command, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.sendCommand(op, value)
}

func (d *Device) sendCommand(op Command, value byte) error {
	if err := d.tr.FlushTX(); err != nil {
		return err
	}
	return d.tr.SendByte(encodeCommand(op, value))
}

// selectInput addresses the given line for subsequent per-line commands:
// four CmdSetIndex commands carrying 2-bit slices of the index.
func (d *Device) selectInput(index int) error {
	for i := 0; i < 4; i++ {
		if err := d.sendCommand(CmdSetIndex, byte(i<<2)|byte(index&0x3)); err != nil {
			return err
		}
		index >>= 2
	}
	return nil
}

// setLag programs the selected addressing mode's lag register: four
// CmdSetDelay commands carrying 3-bit slices of the value. Bit 3 of the
// field-index byte selects auto-lag over cross-lag addressing. The device
// echoes an intermediate state after the last slice, so one stale packet is
// drained before subsequent reads can be trusted.
func (d *Device) setLag(index, value int, auto bool) error {
	if err := d.selectInput(index); err != nil {
		return err
	}
	mode := byte(0)
	if auto {
		mode = 0x8
	}
	for i := 0; i < 4; i++ {
		if err := d.sendCommand(CmdSetDelay, byte(i<<4)|mode|byte(value&0x7)); err != nil {
			return err
		}
		value >>= 3
	}
	d.readFreshPacket(nil)
	return nil
}

// SetLagAuto sets the line's autocorrelation lag in clock cycles.
func (d *Device) SetLagAuto(index, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.setLag(index, value, true)
}

// SetLagCross sets the line's crosscorrelation lag in clock cycles.
func (d *Device) SetLagCross(index, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.setLag(index, value, false)
}

// SetLeds drives the line's LED mask.
func (d *Device) SetLeds(index int, leds byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if index >= 0 && index < len(d.leds) {
		d.leds[index] = leds
	}
	if err := d.selectInput(index); err != nil {
		return err
	}
	return d.sendCommand(CmdSetLeds, leds&0xF)
}

// SetVoltage sets the line's supply level: four CmdSetVoltage commands
// carrying 2-bit slices of the value.
func (d *Device) SetVoltage(index int, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if err := d.selectInput(index); err != nil {
		return err
	}
	v := int(value)
	for i := 0; i < 4; i++ {
		if err := d.sendCommand(CmdSetVoltage, byte(i<<2)|byte(v&0x3)); err != nil {
			return err
		}
		v >>= 2
	}
	d.voltage = value
	return nil
}

// SetTest raises test-mode flags on the line. The full updated per-line test
// byte is sent in a single command.
func (d *Device) SetTest(index int, flag TestFlag) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.setTest(index, flag)
}

func (d *Device) setTest(index int, flag TestFlag) error {
	if err := d.selectInput(index); err != nil {
		return err
	}
	if index >= 0 && index < len(d.test) {
		d.test[index] |= byte(flag)
		return d.sendCommand(CmdEnableTest, d.test[index])
	}
	return d.sendCommand(CmdEnableTest, byte(flag))
}

// ClearTest lowers test-mode flags on the line.
func (d *Device) ClearTest(index int, flag TestFlag) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	return d.clearTest(index, flag)
}

func (d *Device) clearTest(index int, flag TestFlag) error {
	if err := d.selectInput(index); err != nil {
		return err
	}
	if index >= 0 && index < len(d.test) {
		d.test[index] &^= byte(flag)
		return d.sendCommand(CmdEnableTest, d.test[index])
	}
	return d.sendCommand(CmdEnableTest, 0)
}

// SetFrequencyDivider sets the correlation clock divider power of two,
// clamped to the 4-bit register.
func (d *Device) SetFrequencyDivider(value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if value > 0xF {
		value = 0xF
	}
	if err := d.sendCommand(CmdSetFreqDiv, value); err != nil {
		return err
	}
	d.frequencyDivider = int(value)
	return nil
}

// EnableCapture starts or stops the device's continuous packet transmission.
func (d *Device) EnableCapture(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return ErrNotConnected
	}
	if enable {
		return d.setCaptureFlag(CaptureEnable)
	}
	return d.clearCaptureFlag(CaptureEnable)
}

// setCaptureFlag raises a bit in the capture bitmask. The receive buffer is
// flushed first so no stale capture state survives the transition.
func (d *Device) setCaptureFlag(flag CaptureFlag) error {
	d.captureFlags |= 1 << flag
	if err := d.tr.FlushRX(); err != nil {
		return err
	}
	return d.sendCommand(CmdEnableCapture, d.captureFlags)
}

func (d *Device) clearCaptureFlag(flag CaptureFlag) error {
	d.captureFlags &^= 1 << flag
	return d.sendCommand(CmdEnableCapture, d.captureFlags)
}
