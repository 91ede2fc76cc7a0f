// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/spf13/cobra"
)

var decodeShowTrain bool

var decodeCmd = &cobra.Command{
	Use:   "decode [low/high...]",
	Short: "Decode a captured pulse train offline",
	Long: `Classify and decode a pulse train given as low/high tick pairs.

Pairs may be separated by spaces or commas. With no arguments the train is
read from stdin, which makes it easy to paste a logic analyzer export.

Example:
  joystat decode 3/1 3/1 3/1 3/1 3/1 3/1 3/1 1/3 2/2`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeShowTrain, "train", false, "Print the parsed pulses")
}

func runDecode(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")
	if len(args) == 0 {
		var b strings.Builder
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			b.WriteString(scanner.Text())
			b.WriteString(" ")
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = b.String()
	}

	train, err := joybus.ParseTrain(input)
	if err != nil {
		return err
	}

	if decodeShowTrain {
		fmt.Print(joybus.FormatTrain(train))
	}

	shape, data := joybus.DecodeReport(train)
	fmt.Printf("%d pulses -> %s (%d bytes): %s\n",
		len(train), joybus.FormatShape(shape), len(data), joybus.FormatHex(data))
	return nil
}
