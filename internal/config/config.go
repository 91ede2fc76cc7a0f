// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads joystat settings from YAML
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Bus        BusConfig        `yaml:"bus"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ConnectionConfig struct {
	Port            string        `yaml:"port"`
	Baud            int           `yaml:"baud"`
	URL             string        `yaml:"url"`
	Username        string        `yaml:"username"`
	NoSSLVerify     bool          `yaml:"no_ssl_verify"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	Simulate        bool          `yaml:"simulate"`
}

type BusConfig struct {
	Pin                 int           `yaml:"pin"`
	ReceiveTimeoutTicks int           `yaml:"receive_timeout_ticks"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	PollCommand         string        `yaml:"poll_command"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ReceiveTimeout returns the bus receive timeout as a duration
func (b BusConfig) ReceiveTimeout() time.Duration {
	return time.Duration(b.ReceiveTimeoutTicks) * joybus.Tick
}

// LoadConfig reads path over the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Bus.Pin < 0 {
		return fmt.Errorf("bus.pin must not be negative: %d", c.Bus.Pin)
	}
	if c.Bus.ReceiveTimeoutTicks <= 0 {
		return fmt.Errorf("bus.receive_timeout_ticks must be positive: %d", c.Bus.ReceiveTimeoutTicks)
	}
	if c.Bus.PollInterval <= 0 {
		return fmt.Errorf("bus.poll_interval must be positive: %s", c.Bus.PollInterval)
	}
	if c.Connection.Baud <= 0 {
		return fmt.Errorf("connection.baud must be positive: %d", c.Connection.Baud)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json: %q", c.Log.Format)
	}
	return nil
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Baud:            115200,
			ResponseTimeout: 250 * time.Millisecond,
		},
		Bus: BusConfig{
			Pin:                 18,
			ReceiveTimeoutTicks: int(joybus.DefaultReceiveTimeout / joybus.Tick),
			PollInterval:        16 * time.Millisecond,
			PollCommand:         "40 03 00",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}
