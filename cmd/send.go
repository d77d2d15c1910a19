// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Photonforge Instruments

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/photonforge/xcorr/pkg/xc"
)

// command names accepted on the command line
var commandNames = map[string]xc.Command{
	"clear":   xc.CmdClear,
	"index":   xc.CmdSetIndex,
	"leds":    xc.CmdSetLeds,
	"baud":    xc.CmdSetBaudRate,
	"delay":   xc.CmdSetDelay,
	"freqdiv": xc.CmdSetFreqDiv,
	"voltage": xc.CmdSetVoltage,
	"test":    xc.CmdEnableTest,
	"capture": xc.CmdEnableCapture,
}

var sendCmd = &cobra.Command{
	Use:   "send <command> <value>",
	Short: "Send a raw command byte to the device",
	Long: `Encode and send a single firmware command. The value is nibble-swapped and
masked into the parameter bits exactly as the device expects.

Commands: clear, index, leds, baud, delay, freqdiv, voltage, test, capture.
The value may be decimal or 0x-prefixed hex.

This bypasses all session state tracking; intended for bring-up and firmware
debugging, not normal operation.`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	op, ok := commandNames[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	value, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid value %q: %v", args[1], err)
	}

	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	if err := dev.SendCommand(op, byte(value)); err != nil {
		return err
	}
	fmt.Printf("Sent %s(%d) via %s\n", args[0], value, connInfo)
	return nil
}
