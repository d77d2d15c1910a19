// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var (
	recordOutput string
	recordCount  int
)

// recordEntry is one captured packet with its arrival time, CBOR-encoded as a
// stream of consecutive records.
type recordEntry struct {
	Timestamp time.Time  `cbor:"1,keyasint"`
	Header    string     `cbor:"2,keyasint"`
	Packet    *xc.Packet `cbor:"3,keyasint"`
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture decoded packets to a CBOR stream file",
	Long: `Arm capture and append every decoded packet to a CBOR stream file for
offline analysis. Each record carries the arrival timestamp, the device
header and the fully decoded packet.

Recording stops after --count packets, or on Ctrl+C.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "capture.cbor", "Output file")
	recordCmd.Flags().IntVarP(&recordCount, "count", "n", 0, "Stop after N packets (0 = run until interrupted)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	f, err := os.Create(recordOutput)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := cbor.NewEncoder(f)

	fmt.Printf("Xcorr - Packet Recorder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Recording to %s, press Ctrl+C to stop\n\n", recordOutput)

	if err := dev.EnableCapture(true); err != nil {
		return err
	}
	defer dev.EnableCapture(false)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	packet := dev.NewPacket()
	recorded := 0
	for recordCount == 0 || recorded < recordCount {
		select {
		case <-interrupt:
			fmt.Printf("\nRecorded %d packets\n", recorded)
			return nil
		default:
		}

		err := dev.GetPacket(packet)
		if err != nil {
			if errors.Is(err, xc.ErrTimeout) || errors.Is(err, xc.ErrNoData) {
				continue
			}
			return fmt.Errorf("capture failed after %d packets: %v", recorded, err)
		}

		entry := recordEntry{
			Timestamp: time.Now(),
			Header:    dev.Header(),
			Packet:    packet,
		}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("encode failed: %v", err)
		}
		recorded++
	}

	fmt.Printf("Recorded %d packets\n", recorded)
	return nil
}
