// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package joybus implements the physical layer of the GameCube/N64
// controller bus.
//
// Joybus is a single-wire, half-duplex serial protocol. Every bit is one
// low-then-high pulse whose duty cycle carries the value, and every host
// command ends with a stop pulse. This package converts command bytes into
// pulse trains for a pulse generator peripheral, and converts captured
// pulse trains back into report bytes. The peripheral itself is reached
// through the PulseGenerator, PulseCapture and PinController interfaces.
package joybus

import "time"

// Tick is the duration unit of a pulse phase
const Tick = time.Microsecond

// Signal levels
const (
	LevelLow  Level = 0
	LevelHigh Level = 1
)

// Canonical pulse shapes
var (
	PulseZero = Pulse{LowTicks: 3, LowLevel: LevelLow, HighTicks: 1, HighLevel: LevelHigh}
	PulseOne  = Pulse{LowTicks: 1, LowLevel: LevelLow, HighTicks: 3, HighLevel: LevelHigh}
	PulseStop = Pulse{LowTicks: 2, LowLevel: LevelLow, HighTicks: 2, HighLevel: LevelHigh}
)

// Train size limits
const (
	PulsesPerByte = 8

	// MaxCommandLength bounds an outbound command so that the train
	// (8N+1 pulses) fits one 64-item peripheral memory block.
	MaxCommandLength = 7
	MaxCommandPulses = MaxCommandLength*PulsesPerByte + 1

	// MaxReportLength is the largest report the framing table yields
	MaxReportLength = 8
)

// DefaultReceiveTimeout is how long Receive waits for a captured train.
// It is short because the capture peripheral buffers the whole response
// while the command is still being sent: by the time Receive runs the
// capture is normally already in the ring, so the wait only covers the
// tail of the response.
const DefaultReceiveTimeout = 100 * Tick
