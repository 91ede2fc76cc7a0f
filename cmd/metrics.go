// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"

	"github.com/Thermoquad/joystat/internal/monitor"
	"github.com/Thermoquad/joystat/pkg/joybus"
)

// startMetrics starts the Prometheus endpoint when enabled and returns the
// recorders a transceiver should report to
func startMetrics(ctx context.Context, stats *joybus.Statistics) []joybus.Recorder {
	recorders := []joybus.Recorder{stats}
	if !cfg.Metrics.Enabled {
		return recorders
	}

	m := monitor.NewMetrics()
	log := logger.WithField("component", "metrics")
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return append(recorders, m)
}
