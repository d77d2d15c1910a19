// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Negotiate with the device and display its properties",
	Long: `Connect to a correlator, run the property negotiation handshake and print
the device geometry: line count, baselines, lag buffer depths, readout
frequency and feature flags.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	fmt.Printf("Xcorr - Device Properties\n")
	fmt.Printf("Connection: %s\n\n", connInfo)
	fmt.Print(xc.FormatProperties(dev))
	return nil
}
