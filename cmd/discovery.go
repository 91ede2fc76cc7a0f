// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/Thermoquad/joystat/pkg/joybus/sim"
	"github.com/spf13/cobra"
)

var discoveryPins []int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find controllers by probing bridge pins with the identity command",
	Long: `Send the identity command (00) on each pin and report what answers.

Every pin gets its own transceiver, since a transceiver stays bound to the
first pin it configures. Pins the bridge refuses to configure are reported
and skipped.

Examples:
  joystat discovery --port /dev/ttyACM0
  joystat discovery --sim --pins 4,18,19

Exit codes:
  0 - At least one controller found
  1 - No controller answered
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntSliceVar(&discoveryPins, "pins", nil, "Pins to probe (default 0-39)")
}

// controllerKind names the device type from its identity bytes
func controllerKind(identity []byte) string {
	if len(identity) != 3 {
		return "unknown"
	}
	switch identity[0] {
	case 0x05:
		return "N64 controller"
	case 0x09:
		return "GameCube controller"
	case 0x08:
		return "GameCube WaveBird receiver"
	case 0xE9:
		return "GameCube WaveBird"
	default:
		return fmt.Sprintf("unknown device 0x%02X", identity[0])
	}
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	pins := discoveryPins
	if len(pins) == 0 {
		for p := 0; p < 40; p++ {
			pins = append(pins, p)
		}
	}

	session, err := openBus(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer session.Close()

	fmt.Printf("Joystat - Controller Discovery\n")
	fmt.Printf("Connection: %s\n", session.info)
	fmt.Printf("Pins: %d\n\n", len(pins))

	opts := []joybus.Option{
		joybus.WithReceiveTimeout(cfg.Bus.ReceiveTimeout()),
		joybus.WithLogger(logger.WithField("component", "transceiver")),
	}

	found := 0
	for _, p := range pins {
		pin := joybus.Pin(p)

		var tr *joybus.Transceiver
		if session.bridge != nil {
			tr = joybus.NewTransceiver(session.bridge, session.bridge, session.bridge, opts...)
		} else {
			// The simulated controller only sits on the configured pin
			var responder sim.Responder
			if pin == session.pin {
				responder = session.sim
			}
			bus := sim.NewBus(responder)
			tr = joybus.NewTransceiver(bus, bus, bus, opts...)
		}

		identity, err := tr.SendAndReceive(pin, []byte{sim.CmdIdentity})
		switch {
		case err != nil:
			logger.WithError(err).WithField("pin", p).Debug("probe failed")
			fmt.Printf("Pin %2d: skipped (%v)\n", p, err)
		case len(identity) == 0:
			logger.WithField("pin", p).Debug("no answer")
		default:
			found++
			fmt.Printf("Pin %2d: %s (identity %s)\n", p, controllerKind(identity), joybus.FormatHex(identity))
		}
	}

	fmt.Printf("\n%d controller(s) found\n", found)
	if found == 0 {
		os.Exit(1)
	}
	return nil
}
