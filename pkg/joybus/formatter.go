// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import (
	"fmt"
	"strings"
	"time"
)

// FormatShape returns the human-readable name for a report shape
func FormatShape(shape ReportShape) string {
	switch shape {
	case ReportShort:
		return "SHORT"
	case ReportIdentity:
		return "IDENTITY"
	case ReportState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// FormatPulse formats a pulse as low/high ticks with its decoded bit
func FormatPulse(p Pulse) string {
	if p.IsStop() {
		return fmt.Sprintf("%d/%d(S)", p.LowTicks, p.HighTicks)
	}
	bit := 0
	if p.Bit() {
		bit = 1
	}
	return fmt.Sprintf("%d/%d(%d)", p.LowTicks, p.HighTicks, bit)
}

// FormatTrain formats a pulse train, one byte group per line
func FormatTrain(train []Pulse) string {
	var sb strings.Builder
	for i, p := range train {
		if i%PulsesPerByte == 0 {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(fmt.Sprintf("  [%3d] ", i))
		} else {
			sb.WriteString(" ")
		}
		sb.WriteString(FormatPulse(p))
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatHex formats bytes as space separated hex
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("% X", data)
}

// FormatReport formats a decoded report with timestamp and shape
func FormatReport(ts time.Time, cmd []byte, report []byte) string {
	timestamp := ts.Format("15:04:05.000")
	shape := ReportUnknown
	for _, fs := range frameShapes {
		if fs.byteCount == len(report) {
			shape = fs.shape
		}
	}
	if len(report) == 0 {
		return fmt.Sprintf("[%s] CMD %s -> no report\n", timestamp, FormatHex(cmd))
	}
	return fmt.Sprintf("[%s] CMD %s -> %s (%d bytes): %s\n", timestamp, FormatHex(cmd), FormatShape(shape), len(report), FormatHex(report))
}
