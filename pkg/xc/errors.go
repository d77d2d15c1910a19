// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"errors"
	"fmt"
)

// Error taxonomy. Framing errors (ErrShortFrame, ErrInvalidHeader,
// ErrIncomplete) are absorbed and retried inside the frame reader; everything
// else propagates to the caller.
var (
	// ErrTimeout means the transport did not respond in time. It is terminal
	// for the frame-reader retry loop and fatal for a running scan.
	ErrTimeout = errors.New("transport timeout")

	// ErrShortFrame means the terminator arrived before the expected packet
	// length; the reader resynchronizes and retries.
	ErrShortFrame = errors.New("short frame")

	// ErrInvalidHeader means a misframed packet carried a prefix that does not
	// match the negotiated header.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrIncomplete means fewer bytes than a full packet arrived.
	ErrIncomplete = errors.New("incomplete packet")

	// ErrBusy means property negotiation exhausted its retry budget without a
	// valid packet.
	ErrBusy = errors.New("device busy")

	// ErrInvalidFormat means the properties header did not parse as the fixed
	// hexadecimal layout.
	ErrInvalidFormat = errors.New("invalid properties format")

	// ErrNoData means the frame reader exhausted its retry budget without
	// producing a packet.
	ErrNoData = errors.New("no packet available")

	// ErrNotConnected means an operation was attempted before Connect or
	// after Disconnect.
	ErrNotConnected = errors.New("not connected")
)

// ParseError reports a malformed hexadecimal payload field. It is surfaced
// immediately and never retried.
type ParseError struct {
	Field  string // which run the field belongs to, e.g. "counts", "auto"
	Index  int    // field position within the run
	Offset int    // byte offset of the field in the packet
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s[%d] at offset %d: %v", e.Field, e.Index, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
