// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/spf13/cobra"
)

var (
	pollInterval      time.Duration
	pollCommand       string
	pollCount         int
	pollStatsInterval int
	pollQuiet         bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Repeatedly poll the controller and print its reports",
	Long: `Send the poll command at a fixed interval and print every report.

Statistics are printed every --stats-interval seconds and again on exit.
The default command 40 03 00 polls a GameCube controller with rumble off.

With --metrics-addr the transaction counters are also exported for
Prometheus.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Poll interval (default from config, 16ms)")
	pollCmd.Flags().StringVar(&pollCommand, "command", "", "Poll command as hex (default from config, \"40 03 00\")")
	pollCmd.Flags().IntVar(&pollCount, "count", 0, "Stop after this many polls (0 = forever)")
	pollCmd.Flags().IntVar(&pollStatsInterval, "stats-interval", 5, "Statistics interval in seconds (0 = only on exit)")
	pollCmd.Flags().BoolVar(&pollQuiet, "quiet", false, "Only print statistics")
}

func runPoll(cmd *cobra.Command, args []string) error {
	interval := cfg.Bus.PollInterval
	if pollInterval > 0 {
		interval = pollInterval
	}
	commandText := cfg.Bus.PollCommand
	if pollCommand != "" {
		commandText = pollCommand
	}
	command, err := parseHexBytes(commandText)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := joybus.NewStatistics()
	session, err := openBus(cfg, startMetrics(ctx, stats)...)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("Joystat - Poll\n")
	fmt.Printf("Connection: %s\n", session.info)
	fmt.Printf("Command: %s every %v on pin %d\n", joybus.FormatHex(command), interval, session.pin)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var statsTick <-chan time.Time
	if pollStatsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(pollStatsInterval) * time.Second)
		defer statsTicker.Stop()
		statsTick = statsTicker.C
	}

	for sent := 0; pollCount == 0 || sent < pollCount; sent++ {
		report, err := session.tr.SendAndReceive(session.pin, command)
		switch {
		case errors.Is(err, joybus.ErrConfigure):
			// Latched, every later transaction would fail the same way
			return err
		case err != nil:
			logger.WithError(err).Warn("poll failed")
		case !pollQuiet:
			fmt.Print(joybus.FormatReport(time.Now(), command, report))
		}

		select {
		case <-ctx.Done():
			fmt.Printf("\n%s", stats)
			return nil
		case <-statsTick:
			stats.CalculateRates()
			fmt.Printf("\n%s\n", stats)
		case <-ticker.C:
		}
	}

	fmt.Printf("\n%s", stats)
	return nil
}
