// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	monitorInterval time.Duration
	monitorCommand  string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI showing live controller reports",
	Long: `Poll the controller continuously and show the latest report, decoded
controller state, transaction statistics and a log in a terminal UI.

Keys:
  tab     focus the command input (type hex bytes, enter to send)
  p       pause/resume polling
  r       reset statistics
  i       send identity (00)
  o       send origin (41)
  q       quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "Poll interval (default from config, 16ms)")
	monitorCmd.Flags().StringVar(&monitorCommand, "command", "", "Poll command as hex (default from config)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	interval := cfg.Bus.PollInterval
	if monitorInterval > 0 {
		interval = monitorInterval
	}
	commandText := cfg.Bus.PollCommand
	if monitorCommand != "" {
		commandText = monitorCommand
	}
	command, err := parseHexBytes(commandText)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats := joybus.NewStatistics()
	session, err := openBus(cfg, startMetrics(ctx, stats)...)
	if err != nil {
		return err
	}
	defer session.Close()

	m := newMonitorModel(session, stats, command, interval)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// The TUI owns the terminal; log lines go to its log pane instead
	logger.Logger.SetOutput(io.Discard)
	logger.Logger.AddHook(&tuiLogHook{program: p})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// tuiLogHook forwards log entries to the monitor's log pane
type tuiLogHook struct {
	program *tea.Program
}

func (h *tuiLogHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (h *tuiLogHook) Fire(entry *logrus.Entry) error {
	msg := logMsg{
		timestamp: entry.Time,
		message:   entry.Message,
		isError:   entry.Level <= logrus.WarnLevel,
	}
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		msg.message = fmt.Sprintf("%s: %v", entry.Message, err)
	}
	// Send blocks until the event loop takes the message
	go h.program.Send(msg)
	return nil
}
