// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte-oriented half-duplex link to a correlator. The
// protocol is strictly request/response, so callers must not interleave
// operations from multiple goroutines; Device serializes all access.
type Transport interface {
	// SendByte writes one byte to the device.
	SendByte(b byte) error

	// ReadExact blocks until n bytes arrive or the timeout elapses, writing
	// into buf[:n]. It returns the number of bytes read; ErrTimeout is
	// returned when nothing arrived at all.
	ReadExact(buf []byte, timeout time.Duration) (int, error)

	// FlushTX discards any unsent outbound bytes.
	FlushTX() error

	// FlushRX discards any buffered inbound bytes.
	FlushRX() error

	// AlignFrame consumes inbound bytes up to and including the next
	// terminator, resynchronizing the stream on frame loss.
	AlignFrame(terminator byte, timeout time.Duration) error

	// SetRate retunes the link to the given baud rate.
	SetRate(baud int) error

	Close() error
}

// SerialTransport drives a correlator over a local serial port.
type SerialTransport struct {
	port serial.Port
}

// OpenSerial opens the named serial port at the correlator's base rate with
// the device's 8N2 framing.
func OpenSerial(portName string) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: BaseRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialTransport{port: port}, nil
}

func (s *SerialTransport) SendByte(b byte) error {
	_, err := s.port.Write([]byte{b})
	return err
}

func (s *SerialTransport) ReadExact(buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	total := 0
	for total < len(buf) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return total, err
		}
		n, err := s.port.Read(buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			// go.bug.st/serial signals an expired read timeout with a
			// zero-length read and a nil error
			break
		}
		total += n
	}
	if total == 0 {
		return 0, ErrTimeout
	}
	return total, nil
}

func (s *SerialTransport) FlushTX() error {
	return s.port.ResetOutputBuffer()
}

func (s *SerialTransport) FlushRX() error {
	return s.port.ResetInputBuffer()
}

func (s *SerialTransport) AlignFrame(terminator byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	one := make([]byte, 1)
	for time.Now().Before(deadline) {
		if err := s.port.SetReadTimeout(time.Until(deadline)); err != nil {
			return err
		}
		n, err := s.port.Read(one)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTimeout
		}
		if one[0] == terminator {
			return nil
		}
	}
	return ErrTimeout
}

func (s *SerialTransport) SetRate(baud int) error {
	return s.port.SetMode(&serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	})
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}
