// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "joystat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Bus.ReceiveTimeout() != joybus.DefaultReceiveTimeout {
		t.Errorf("ReceiveTimeout = %v, want %v", cfg.Bus.ReceiveTimeout(), joybus.DefaultReceiveTimeout)
	}
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
connection:
  port: /dev/ttyACM0
  baud: 921600
bus:
  pin: 4
  poll_interval: 50ms
log:
  format: json
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Connection.Port != "/dev/ttyACM0" || cfg.Connection.Baud != 921600 {
		t.Errorf("connection = %+v", cfg.Connection)
	}
	if cfg.Bus.Pin != 4 {
		t.Errorf("pin = %d, want 4", cfg.Bus.Pin)
	}
	if cfg.Bus.PollInterval != 50*time.Millisecond {
		t.Errorf("poll_interval = %v, want 50ms", cfg.Bus.PollInterval)
	}
	// Untouched values keep their defaults
	if cfg.Bus.ReceiveTimeoutTicks != 100 {
		t.Errorf("receive_timeout_ticks = %d, want 100", cfg.Bus.ReceiveTimeoutTicks)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "bus: [unclosed"},
		{"negative pin", "bus:\n  pin: -1\n"},
		{"zero timeout", "bus:\n  receive_timeout_ticks: 0\n"},
		{"bad log format", "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
