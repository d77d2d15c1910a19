// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"bytes"
	"errors"
)

// Frame reader. Packets are fixed-width hex ASCII runs terminated by '\r';
// the reader's job is to pull one well-formed packet out of a possibly
// misaligned or noisy stream. Framing errors are absorbed and retried here;
// only ErrTimeout escapes the retry loop.

// readPacket reads exactly one packet-worth of bytes into buf, which must be
// packetSize long. Before negotiation the packet is the bare header frame and
// the stream is aligned to the terminator first.
func (d *Device) readPacket(buf []byte) error {
	size := d.packetSize
	for i := range buf {
		buf[i] = 0
	}
	if size == HeaderSize+1 {
		d.tr.AlignFrame(Terminator, d.timeout)
	}

	n, err := d.tr.ReadExact(buf, d.timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return ErrTimeout
		}
		return err
	}

	var frameErr error
	idx := bytes.IndexByte(buf, Terminator)
	if idx != size-1 {
		// misframed: classify, then resynchronize to the next terminator
		if idx >= HeaderSize && len(d.header) == HeaderSize && !bytes.Equal(buf[:HeaderSize], d.header) {
			frameErr = ErrInvalidHeader
		} else {
			frameErr = ErrShortFrame
		}
		d.tr.AlignFrame(Terminator, d.timeout)
	}
	if n < size {
		frameErr = ErrIncomplete
	}
	return frameErr
}

// readValidPacket retries readPacket up to the frame retry budget. It returns
// the packet bytes on success, (nil, ErrTimeout) when the transport went
// silent, and (nil, nil) when the budget ran out on framing errors alone.
func (d *Device) readValidPacket(buf []byte) ([]byte, error) {
	if buf == nil {
		buf = make([]byte, d.packetSize)
	}
	for attempt := 0; attempt < maxFrameRetries; attempt++ {
		err := d.readPacket(buf)
		if err == nil {
			return buf, nil
		}
		if errors.Is(err, ErrTimeout) {
			return nil, ErrTimeout
		}
	}
	return nil, nil
}

// readFreshPacket discards anything buffered in the receive path before
// reading, guaranteeing the returned packet is not stale.
func (d *Device) readFreshPacket(buf []byte) ([]byte, error) {
	d.tr.FlushRX()
	return d.readValidPacket(buf)
}
