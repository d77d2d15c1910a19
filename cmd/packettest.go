// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid correlator packet",
	Long: `Negotiate with the device, arm capture and wait for one valid packet
until timeout.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for testing connectivity to a correlator or a WebSocket serial bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Disconnect()

	fmt.Printf("Xcorr - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid packet...\n\n")

	if err := dev.EnableCapture(true); err != nil {
		fmt.Fprintf(os.Stderr, "Capture failed: %v\n", err)
		os.Exit(2)
	}
	defer dev.EnableCapture(false)

	// Channel for packet reception
	packetChan := make(chan *xc.Packet, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		for {
			packet := dev.NewPacket()
			if err := dev.GetPacket(packet); err != nil {
				// frame noise and empty reads just mean keep waiting
				if err == xc.ErrTimeout || err == xc.ErrNoData {
					continue
				}
				errChan <- err
				return
			}
			packetChan <- packet
			return
		}
	}()

	// Wait for packet or timeout
	select {
	case packet := <-packetChan:
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Lines: %d\n", packet.NLines)
		fmt.Printf("  Baselines: %d\n", packet.NBaselines)
		fmt.Printf("  Sample width: %d bits\n", packet.BPS)
		fmt.Printf("  Integration: %d ps\n", packet.Tau)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
