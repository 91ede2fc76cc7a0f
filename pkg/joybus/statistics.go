// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks transaction outcomes and rates.
// It implements Recorder and is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalTransactions uint64
	ShortReports      uint64
	IdentityReports   uint64
	StateReports      uint64
	UnknownReports    uint64
	Timeouts          uint64
	Errors            uint64

	// Latency of the last decoded report
	LastLatency time.Duration

	// Rates (calculated)
	TransactionRate float64 // transactions/sec
	ErrorRate       float64 // failed transactions/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordReport counts a captured train by its report shape
func (s *Statistics) RecordReport(shape ReportShape, pulses int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalTransactions++
	switch shape {
	case ReportShort:
		s.ShortReports++
	case ReportIdentity:
		s.IdentityReports++
	case ReportState:
		s.StateReports++
	default:
		s.UnknownReports++
	}
	s.LastLatency = elapsed
	s.LastUpdateTime = time.Now()
}

// RecordTimeout counts a transaction that got no response
func (s *Statistics) RecordTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalTransactions++
	s.Timeouts++
	s.LastUpdateTime = time.Now()
}

// RecordError counts a transaction that failed
func (s *Statistics) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalTransactions++
	s.Errors++
	s.LastUpdateTime = time.Now()
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	Elapsed           time.Duration
	TotalTransactions uint64
	ShortReports      uint64
	IdentityReports   uint64
	StateReports      uint64
	UnknownReports    uint64
	Timeouts          uint64
	Errors            uint64
	LastLatency       time.Duration
	TransactionRate   float64
	ErrorRate         float64
}

// Snapshot recalculates the rates and copies the counters
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	return StatisticsSnapshot{
		Elapsed:           time.Since(s.StartTime),
		TotalTransactions: s.TotalTransactions,
		ShortReports:      s.ShortReports,
		IdentityReports:   s.IdentityReports,
		StateReports:      s.StateReports,
		UnknownReports:    s.UnknownReports,
		Timeouts:          s.Timeouts,
		Errors:            s.Errors,
		LastLatency:       s.LastLatency,
		TransactionRate:   s.TransactionRate,
		ErrorRate:         s.ErrorRate,
	}
}

// Decoded returns the number of transactions that produced a report
func (s *Statistics) Decoded() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ShortReports + s.IdentityReports + s.StateReports
}

// CalculateRates calculates transaction and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.TransactionRate = float64(s.TotalTransactions) / elapsed
		failures := s.Timeouts + s.Errors + s.UnknownReports
		s.ErrorRate = float64(failures) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	percent := func(n uint64) float64 {
		if s.TotalTransactions == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalTransactions)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Transactions:    %8d\n", s.TotalTransactions)
	result += fmt.Sprintf("1-byte Reports:  %8d (%.1f%%)\n", s.ShortReports, percent(s.ShortReports))
	result += fmt.Sprintf("3-byte Reports:  %8d (%.1f%%)\n", s.IdentityReports, percent(s.IdentityReports))
	result += fmt.Sprintf("8-byte Reports:  %8d (%.1f%%)\n", s.StateReports, percent(s.StateReports))

	if s.UnknownReports > 0 {
		result += fmt.Sprintf("Unknown Length:  %8d (%.1f%%)\n", s.UnknownReports, percent(s.UnknownReports))
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("No Response:     %8d (%.1f%%)\n", s.Timeouts, percent(s.Timeouts))
	}
	if s.Errors > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", s.Errors, percent(s.Errors))
	}

	result += fmt.Sprintf("Transaction Rate:%8.1f /sec\n", s.TransactionRate)
	result += fmt.Sprintf("Failure Rate:    %8.1f /sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalTransactions = 0
	s.ShortReports = 0
	s.IdentityReports = 0
	s.StateReports = 0
	s.UnknownReports = 0
	s.Timeouts = 0
	s.Errors = 0
	s.LastLatency = 0
	s.TransactionRate = 0
	s.ErrorRate = 0
}
