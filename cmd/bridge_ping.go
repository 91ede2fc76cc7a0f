// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus/bridge"
	"github.com/spf13/cobra"
)

var (
	bridgePingTimeout time.Duration
	bridgePingCount   int
)

var bridgePingCmd = &cobra.Command{
	Use:   "bridge_ping",
	Short: "Check that the pulse bridge answers",
	Long: `Send PING requests to the pulse bridge and wait for PONG.

This is useful for verifying:
  - The serial or WebSocket link is up
  - HTTP Basic authentication works
  - The bridge firmware is parsing frames

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runBridgePing,
}

func init() {
	rootCmd.AddCommand(bridgePingCmd)
	bridgePingCmd.Flags().DurationVar(&bridgePingTimeout, "timeout", time.Second, "Timeout for each ping")
	bridgePingCmd.Flags().IntVar(&bridgePingCount, "count", 3, "Number of pings to send")
}

func runBridgePing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Connection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	b := bridge.New(conn,
		bridge.WithResponseTimeout(bridgePingTimeout),
		bridge.WithLogger(logger.WithField("component", "bridge")),
	)
	defer b.Close()

	fmt.Printf("Joystat - Bridge Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v per ping\n", bridgePingTimeout)
	fmt.Printf("Count: %d pings\n\n", bridgePingCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= bridgePingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, bridgePingCount)

		rtt, err := b.Ping()
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("PONG, rtt=%v\n", rtt.Round(time.Microsecond))
			successCount++
		}

		// Small delay between pings
		if i < bridgePingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		bridgePingCount, successCount, float64(failCount)/float64(bridgePingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
