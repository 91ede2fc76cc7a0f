// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePulse parses a pulse written as "low/high" ticks
func ParsePulse(s string) (Pulse, error) {
	lowStr, highStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Pulse{}, fmt.Errorf("invalid pulse %q: expected low/high", s)
	}
	low, err := strconv.ParseUint(lowStr, 10, 16)
	if err != nil {
		return Pulse{}, fmt.Errorf("invalid low ticks in %q: %w", s, err)
	}
	high, err := strconv.ParseUint(highStr, 10, 16)
	if err != nil {
		return Pulse{}, fmt.Errorf("invalid high ticks in %q: %w", s, err)
	}
	return Pulse{LowTicks: uint16(low), LowLevel: LevelLow, HighTicks: uint16(high), HighLevel: LevelHigh}, nil
}

// ParseTrain parses whitespace or comma separated "low/high" pulses
func ParseTrain(s string) ([]Pulse, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	train := make([]Pulse, 0, len(fields))
	for i, f := range fields {
		p, err := ParsePulse(f)
		if err != nil {
			return nil, fmt.Errorf("pulse %d: %w", i, err)
		}
		train = append(train, p)
	}
	return train, nil
}
