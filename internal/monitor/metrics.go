// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package monitor exports bus transaction metrics to Prometheus
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics implements joybus.Recorder on Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	Reports  *prometheus.CounterVec
	Pulses   prometheus.Histogram
	Timeouts prometheus.Counter
	Errors   *prometheus.CounterVec
	Latency  prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "joybus_reports_total",
			Help: "Captured trains by report shape",
		}, []string{"shape"}),
		Pulses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "joybus_capture_pulses",
			Help:    "Pulse count of captured trains",
			Buckets: []float64{9, 25, 89, 90, 100, 128},
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joybus_timeouts_total",
			Help: "Transactions with no response",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "joybus_errors_total",
			Help: "Failed transactions by cause",
		}, []string{"cause"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "joybus_receive_seconds",
			Help:    "Time from receive start to decoded report",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	m.registry.MustRegister(m.Reports, m.Pulses, m.Timeouts, m.Errors, m.Latency)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordReport implements joybus.Recorder
func (m *Metrics) RecordReport(shape joybus.ReportShape, pulses int, elapsed time.Duration) {
	m.Reports.WithLabelValues(joybus.FormatShape(shape)).Inc()
	m.Pulses.Observe(float64(pulses))
	m.Latency.Observe(elapsed.Seconds())
}

// RecordTimeout implements joybus.Recorder
func (m *Metrics) RecordTimeout() {
	m.Timeouts.Inc()
}

// RecordError implements joybus.Recorder
func (m *Metrics) RecordError(err error) {
	m.Errors.WithLabelValues(errorCause(err)).Inc()
}

func errorCause(err error) string {
	switch {
	case errors.Is(err, joybus.ErrConfigure):
		return "configure"
	case errors.Is(err, joybus.ErrPinMismatch):
		return "pin_mismatch"
	case errors.Is(err, joybus.ErrCommandTooLong):
		return "command_too_long"
	case errors.Is(err, joybus.ErrTransmit):
		return "transmit"
	case errors.Is(err, joybus.ErrCapture):
		return "capture"
	default:
		return "other"
	}
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, log *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
