// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks packet and error rates for a monitoring session.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets  uint64
	ValidPackets  uint64
	Timeouts      uint64
	FrameErrors   uint64
	ParseErrors   uint64
	EmptyReads    uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records the outcome of one GetPacket attempt.
func (s *Statistics) Update(err error) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	switch {
	case err == nil:
		s.ValidPackets++
	case errors.Is(err, ErrTimeout):
		s.Timeouts++
	case errors.Is(err, ErrNoData):
		s.EmptyReads++
	default:
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			s.ParseErrors++
		} else {
			s.FrameErrors++
		}
	}
}

// CalculateRates recomputes the packet and error rates.
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.Timeouts + s.FrameErrors + s.ParseErrors + s.EmptyReads
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary.
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalPackets > 0 {
		validPercent = float64(s.ValidPackets) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Reads:     %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, validPercent)
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.FrameErrors > 0 {
		result += fmt.Sprintf("Frame Errors:    %8d\n", s.FrameErrors)
	}
	if s.ParseErrors > 0 {
		result += fmt.Sprintf("Parse Errors:    %8d\n", s.ParseErrors)
	}
	if s.EmptyReads > 0 {
		result += fmt.Sprintf("Empty Reads:     %8d\n", s.EmptyReads)
	}
	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters.
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{StartTime: now, LastUpdateTime: now}
}
