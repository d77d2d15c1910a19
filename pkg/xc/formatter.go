// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package xc

import (
	"fmt"
	"strings"
)

// FormatPacket renders a decoded packet in human-readable form.
func FormatPacket(p *Packet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Packet: %d lines, %d baselines, %d bps, tau=%d ps\n",
		p.NLines, p.NBaselines, p.BPS, p.Tau)

	for x, c := range p.Counts {
		fmt.Fprintf(&b, "  Line %d: %d pulses\n", x, c)
	}

	for x := range p.Autocorrelations {
		b.WriteString(fmt.Sprintf("  Auto %d:  %s\n", x, formatRun(p.Autocorrelations[x].Correlations)))
	}

	idx := 0
	for x := 0; x < p.NLines; x++ {
		for y := x + 1; y < p.NLines; y++ {
			if idx < len(p.Crosscorrelations) {
				b.WriteString(fmt.Sprintf("  Cross %d-%d: %s\n", x, y, formatRun(p.Crosscorrelations[idx].Correlations)))
			}
			idx++
		}
	}

	return b.String()
}

// formatRun renders a lag run as coherence values.
func formatRun(run []Correlation) string {
	parts := make([]string, len(run))
	for i, c := range run {
		parts[i] = fmt.Sprintf("%.4f", c.Coherence)
	}
	return strings.Join(parts, " ")
}

// FormatProperties renders the negotiated device geometry.
func FormatProperties(d *Device) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Header:            %s\n", d.Header())
	fmt.Fprintf(&b, "Lines:             %d\n", d.NLines())
	fmt.Fprintf(&b, "Baselines:         %d\n", d.NBaselines())
	fmt.Fprintf(&b, "Bits per sample:   %d\n", d.BPS())
	fmt.Fprintf(&b, "Delay size:        %d\n", d.DelaySize())
	fmt.Fprintf(&b, "Auto lag size:     %d\n", d.AutoLagSize())
	fmt.Fprintf(&b, "Cross lag size:    %d\n", d.CrossLagSize())
	fmt.Fprintf(&b, "Frequency:         %d Hz\n", d.Frequency())
	fmt.Fprintf(&b, "Packet size:       %d bytes\n", d.PacketSize())
	fmt.Fprintf(&b, "Packet time:       %d us\n", d.PacketTime())
	fmt.Fprintf(&b, "Baud rate:         %d\n", d.BaudRate())

	features := []string{}
	if d.HasCrosscorrelator() {
		features = append(features, "crosscorrelator")
	}
	if d.HasLiveAutocorrelator() {
		features = append(features, "live-auto")
	}
	if d.HasLiveCrosscorrelator() {
		features = append(features, "live-cross")
	}
	if d.HasLedFlags() {
		features = append(features, "led-flags")
	}
	if d.HasPSU() {
		features = append(features, "psu")
	}
	if len(features) == 0 {
		features = append(features, "none")
	}
	fmt.Fprintf(&b, "Features:          %s\n", strings.Join(features, ", "))

	return b.String()
}

// FormatSamples renders scan samples as tab-separated lag/coherence rows, one
// row per scan step.
func FormatSamples(samples []Sample) string {
	var b strings.Builder

	b.WriteString("step")
	if len(samples) > 0 {
		for y := range samples[0].Correlations {
			fmt.Fprintf(&b, "\tlag%d", y)
		}
	}
	b.WriteByte('\n')

	for i := range samples {
		fmt.Fprintf(&b, "%d", i)
		for _, c := range samples[i].Correlations {
			fmt.Fprintf(&b, "\t%.6f", c.Coherence)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
