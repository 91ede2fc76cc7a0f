// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/spf13/cobra"
)

var sendShowTrain bool

var sendCmd = &cobra.Command{
	Use:   "send <hex bytes...>",
	Short: "Send one command and print the controller's report",
	Long: `Encode a command into a joybus pulse train, transmit it, and decode the
captured response.

Examples:
  joystat send --sim 00           # identity
  joystat send --sim 40 03 00     # poll with rumble off
  joystat send -p /dev/ttyACM0 0x41

Commands are limited to 7 bytes. A silent controller or a response of an
unrecognized length prints "no report".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendShowTrain, "train", false, "Also print the transmitted pulse train")
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := parseHexBytes(args...)
	if err != nil {
		return err
	}

	session, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	logger.WithField("connection", session.info).Debug("bus opened")

	if sendShowTrain {
		train, err := joybus.EncodeCommand(command)
		if err != nil {
			return err
		}
		fmt.Printf("Train (%d pulses):\n%s", len(train), joybus.FormatTrain(train))
	}

	report, err := session.tr.SendAndReceive(session.pin, command)
	if err != nil {
		return err
	}

	fmt.Print(joybus.FormatReport(time.Now(), command, report))
	return nil
}
