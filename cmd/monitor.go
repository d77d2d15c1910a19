// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var (
	monitorCount         int
	monitorStatsInterval int
	monitorQuiet         bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Continuously capture and display correlator packets",
	Long: `Arm capture and decode packets as they arrive, printing each one in
human-readable form with periodic statistics summaries.

Use --count to stop after a fixed number of packets, --quiet to suppress
per-packet output and keep only the statistics.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVarP(&monitorCount, "count", "n", 0, "Stop after N packets (0 = run until interrupted)")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVarP(&monitorQuiet, "quiet", "q", false, "Statistics only, no per-packet output")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	fmt.Printf("Xcorr - Packet Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Packet size: %d bytes (~%d us each)\n", dev.PacketSize(), dev.PacketTime())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := dev.EnableCapture(true); err != nil {
		return err
	}
	defer dev.EnableCapture(false)

	stats := xc.NewStatistics()
	packet := dev.NewPacket()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	statsTicker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
	defer statsTicker.Stop()

	received := 0
	for monitorCount == 0 || received < monitorCount {
		select {
		case <-interrupt:
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		default:
		}

		err := dev.GetPacket(packet)
		stats.Update(err)
		if err != nil {
			if errors.Is(err, xc.ErrTimeout) || errors.Is(err, xc.ErrNoData) {
				continue
			}
			log.Printf("Read error: %v", err)
			continue
		}

		received++
		if !monitorQuiet {
			fmt.Print(xc.FormatPacket(packet))
		}
	}

	fmt.Println()
	fmt.Print(stats.String())
	return nil
}
