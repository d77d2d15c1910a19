// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/photonforge/xcorr/pkg/xc"
)

var (
	discoveryTimeout int
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Probe serial ports for correlators",
	Long: `Enumerate the host's serial ports and probe each one for an XC
correlator by running the property negotiation handshake.

Ports that answer with a valid properties header are listed with their
geometry; everything else is skipped silently. A port named with --port is
probed alone.

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices)
  2 - Port enumeration error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 2, "Per-port probe timeout in seconds")
}

// probePort opens one port and tries the negotiation handshake.
func probePort(port string, timeout time.Duration) (*xc.Device, error) {
	dev, err := xc.Connect(port)
	if err != nil {
		return nil, err
	}
	dev.SetReadTimeout(timeout)
	if err := dev.GetProperties(); err != nil {
		dev.Disconnect()
		return nil, err
	}
	return dev, nil
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	var ports []string
	if portName != "" {
		ports = []string{portName}
	} else {
		var err error
		ports, err = serial.GetPortsList()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Port enumeration error: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Printf("Xcorr - Device Discovery\n")
	fmt.Printf("Probing %d port(s), timeout %d seconds each\n\n", len(ports), discoveryTimeout)

	found := 0
	for _, port := range ports {
		dev, err := probePort(port, time.Duration(discoveryTimeout)*time.Second)
		if err != nil {
			continue
		}

		found++
		fmt.Printf("%s: correlator, %d lines, %d baselines, %d Hz\n",
			port, dev.NLines(), dev.NBaselines(), dev.Frequency())
		dev.Disconnect()
	}

	if found == 0 {
		fmt.Fprintf(os.Stderr, "No correlators found\n")
		os.Exit(1)
	}
	fmt.Printf("\nFound %d correlator(s)\n", found)
	return nil
}
