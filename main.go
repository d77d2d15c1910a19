// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments
//
// Xcorr - XC pulse cross-correlator control
//
// A CLI tool for driving XC series correlators: device discovery, live
// packet monitoring, delay scans and raw command injection.

package main

import (
	"os"

	"github.com/photonforge/xcorr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
