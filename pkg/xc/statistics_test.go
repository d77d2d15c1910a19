// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"strings"
	"testing"
)

func TestStatisticsClassification(t *testing.T) {
	s := NewStatistics()

	s.Update(nil)
	s.Update(nil)
	s.Update(ErrTimeout)
	s.Update(ErrNoData)
	s.Update(&ParseError{Field: "auto", Index: 1, Err: ErrIncomplete})
	s.Update(ErrShortFrame)

	if s.TotalPackets != 6 {
		t.Errorf("TotalPackets = %d, want 6", s.TotalPackets)
	}
	if s.ValidPackets != 2 {
		t.Errorf("ValidPackets = %d, want 2", s.ValidPackets)
	}
	if s.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", s.Timeouts)
	}
	if s.EmptyReads != 1 {
		t.Errorf("EmptyReads = %d, want 1", s.EmptyReads)
	}
	if s.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", s.ParseErrors)
	}
	if s.FrameErrors != 1 {
		t.Errorf("FrameErrors = %d, want 1", s.FrameErrors)
	}
}

func TestStatisticsString(t *testing.T) {
	s := NewStatistics()
	s.Update(nil)
	s.Update(ErrTimeout)

	out := s.String()
	for _, want := range []string{"Total Reads:", "Valid Packets:", "Timeouts:", "Packet Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Parse Errors:") {
		t.Error("String() shows a zero counter")
	}
}

func TestStatisticsReset(t *testing.T) {
	s := NewStatistics()
	s.Update(nil)
	s.Update(ErrTimeout)
	s.Reset()

	if s.TotalPackets != 0 || s.ValidPackets != 0 || s.Timeouts != 0 {
		t.Errorf("counters survived reset: %+v", s)
	}
}
