// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/joystat/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Bus flags
	busPin      int
	simulate    bool
	logLevel    string
	logFormat   string
	metricsAddr string

	// Resolved by PersistentPreRunE
	cfg    *config.Config
	logger *logrus.Entry
)

var rootCmd = &cobra.Command{
	Use:   "joystat",
	Short: "GameCube/N64 controller bus tool",
	Long: `Joystat - A CLI tool for talking to GameCube and N64 controllers through a
joybus pulse bridge.

The bridge is a microcontroller whose pulse peripheral generates and captures
the microsecond-timed joybus pulses. Joystat encodes commands into pulse
trains, sends them through the bridge, and decodes the captured responses.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Simulated: --sim (in-memory controller, no hardware)

For WebSocket authentication, the password is read from the JOYSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be read from a YAML file with --config; flags win over the file.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadSettings,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of the pulse bridge")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of the pulse bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Bus flags
	rootCmd.PersistentFlags().IntVar(&busPin, "pin", 18, "GPIO of the joybus data line on the bridge")
	rootCmd.PersistentFlags().BoolVar(&simulate, "sim", false, "Use a simulated controller instead of a bridge")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// loadSettings merges the config file and the flags that were set
func loadSettings(cmd *cobra.Command, args []string) error {
	c := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		c = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Connection.Port = portName
	}
	if flags.Changed("baud") {
		c.Connection.Baud = baudRate
	}
	if flags.Changed("url") {
		c.Connection.URL = wsURL
	}
	if flags.Changed("username") {
		c.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("sim") {
		c.Connection.Simulate = simulate
	}
	if flags.Changed("pin") {
		c.Bus.Pin = busPin
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}
	if flags.Changed("metrics-addr") {
		c.Metrics.Enabled = metricsAddr != ""
		c.Metrics.Addr = metricsAddr
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	cfg = c
	logger = setupLogger(c.Log)
	return nil
}

// setupLogger builds the process logger from the log settings
func setupLogger(lc config.LogConfig) *logrus.Entry {
	base := logrus.New()

	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if lc.Format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logrus.NewEntry(base).WithField("app", "joystat")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
