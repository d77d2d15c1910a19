// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"bytes"
	"sync"
	"time"
)

// MockTransport implements Transport with a scripted inbound byte stream and
// captured outbound bytes. It enables unit testing without real correlator
// hardware.
type MockTransport struct {
	mu sync.Mutex

	// stream holds bytes to be returned by ReadExact calls
	stream bytes.Buffer

	// Written captures every byte sent to the device
	Written bytes.Buffer

	// TimeoutReads forces the next N ReadExact calls to time out
	TimeoutReads int

	// ReadHook, if set, is invoked before each ReadExact with the call number
	ReadHook func(call int)

	// Call counters
	ReadCalls    int
	FlushTXCalls int
	FlushRXCalls int
	AlignCalls   int
	RateChanges  []int
	Closed       bool
}

// NewMockTransport creates an empty mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// QueueFrame appends a frame to the inbound stream.
func (m *MockTransport) QueueFrame(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stream.Write(frame)
}

func (m *MockTransport) SendByte(b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Written.WriteByte(b)
}

func (m *MockTransport) ReadExact(buf []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	hook := m.ReadHook
	call := m.ReadCalls
	m.ReadCalls++
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TimeoutReads > 0 {
		m.TimeoutReads--
		return 0, ErrTimeout
	}
	if m.stream.Len() == 0 {
		return 0, ErrTimeout
	}
	return m.stream.Read(buf)
}

func (m *MockTransport) FlushTX() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushTXCalls++
	return nil
}

// FlushRX records the flush but keeps the scripted stream intact, so tests can
// queue every frame up front.
func (m *MockTransport) FlushRX() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushRXCalls++
	return nil
}

func (m *MockTransport) AlignFrame(terminator byte, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AlignCalls++
	for m.stream.Len() > 0 {
		b, _ := m.stream.ReadByte()
		if b == terminator {
			return nil
		}
	}
	return ErrTimeout
}

func (m *MockTransport) SetRate(baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateChanges = append(m.RateChanges, baud)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Sent returns all bytes written to the device so far.
func (m *MockTransport) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.Written.Bytes()...)
}

// Pending returns the number of unread scripted bytes.
func (m *MockTransport) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream.Len()
}
