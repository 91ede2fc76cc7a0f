// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

// Level is a logic level on the data line
type Level uint8

// Pulse is one low phase followed by one high phase on the data line.
// Durations are counted in Ticks.
type Pulse struct {
	LowTicks  uint16
	LowLevel  Level
	HighTicks uint16
	HighLevel Level
}

// Bit returns the value carried by the pulse. A low phase strictly shorter
// than the high phase is a 1; anything else, including a tie, is a 0.
func (p Pulse) Bit() bool {
	return p.LowTicks < p.HighTicks
}

// Period returns the total duration of the pulse in ticks
func (p Pulse) Period() uint32 {
	return uint32(p.LowTicks) + uint32(p.HighTicks)
}

// IsStop reports whether p has the exact stop pulse shape
func (p Pulse) IsStop() bool {
	return p.LowTicks == PulseStop.LowTicks && p.HighTicks == PulseStop.HighTicks
}
