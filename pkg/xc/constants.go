// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

// Package xc drives the XC series pulse cross-correlators over a byte-oriented
// serial transport.
//
// The correlators stream fixed-width hexadecimal ASCII packets terminated by a
// carriage return, and accept single-byte bit-packed commands. This package
// provides the framing/recovery layer, the command encoder, the property
// negotiation handshake, the packet decoder and the delay-scanning engine.
package xc

// Version is this driver's version, encoded as 0xMMmmpp.
const Version = 0x010014

// BaseRate is the serial rate every correlator boots at.
const BaseRate = 57600

// BaudRate indexes the supported serial rates: the effective rate is
// BaseRate << rate.
type BaudRate int

// Supported baud rate indices.
const (
	Rate57600 BaudRate = iota
	Rate115200
	Rate230400
	Rate460800
)

// Command is a firmware opcode. The opcode occupies the bits the parameter
// mask leaves free; see SendCommand for the full byte layout.
type Command byte

// Firmware commands.
const (
	CmdClear         Command = 0
	CmdSetIndex      Command = 1
	CmdSetLeds       Command = 2
	CmdSetBaudRate   Command = 3
	CmdSetDelay      Command = 4
	CmdSetFreqDiv    Command = 8
	CmdSetVoltage    Command = 9
	CmdEnableTest    Command = 12
	CmdEnableCapture Command = 13
)

// TestFlag selects a per-line test mode. Flags are OR'd into the line's test
// byte and sent whole with CmdEnableTest.
type TestFlag byte

// Per-line test modes.
const (
	TestNone   TestFlag = 0
	TestSignal TestFlag = 1
	ScanAuto   TestFlag = 2
	ScanCross  TestFlag = 4
	TestAll    TestFlag = 0xF
)

// CaptureFlag is a bit index in the session-wide capture bitmask sent with
// CmdEnableCapture.
type CaptureFlag int

// Capture control bits.
const (
	CaptureEnable CaptureFlag = iota
	CaptureExtClock
	CaptureResetTimestamp
)

// Feature flag bits reported in the properties header.
const (
	FlagLiveAutocorrelator  = 1 << 0
	FlagLiveCrosscorrelator = 1 << 1
	FlagHasLedFlags         = 1 << 2
	FlagHasCrosscorrelator  = 1 << 3
	FlagHasPSU              = 1 << 4
)

// Wire framing.
const (
	HeaderSize = 16   // device-identifying hex prefix, also the resync anchor
	Terminator = '\r' // packet terminator byte

	// parameter bits an opcode's layout reserves inside a command byte
	commandParamMask = 0xF3

	// retry budgets
	maxFrameRetries  = 8
	maxPropertyTries = 4096
)
