// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import "fmt"

// EncodeByte converts a byte into 8 pulses, most significant bit first
func EncodeByte(b byte) [PulsesPerByte]Pulse {
	var pulses [PulsesPerByte]Pulse
	for i := 0; i < PulsesPerByte; i++ {
		if (b>>(7-i))&1 == 1 {
			pulses[i] = PulseOne
		} else {
			pulses[i] = PulseZero
		}
	}
	return pulses
}

// AppendByte appends the 8 pulses encoding b to dst
func AppendByte(dst []Pulse, b byte) []Pulse {
	pulses := EncodeByte(b)
	return append(dst, pulses[:]...)
}

// DecodeByte converts 8 pulses back into a byte, most significant bit first.
//
// p must hold at least 8 pulses; only the first 8 are read.
func DecodeByte(p []Pulse) byte {
	p = p[:PulsesPerByte]
	var val byte
	for i := 0; i < PulsesPerByte; i++ {
		if p[i].Bit() {
			val |= 1 << (7 - i)
		}
	}
	return val
}

// EncodeCommand builds the full outbound train for a command: 8 pulses per
// byte followed by one stop pulse.
func EncodeCommand(cmd []byte) ([]Pulse, error) {
	if len(cmd) > MaxCommandLength {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrCommandTooLong, len(cmd), MaxCommandLength)
	}

	train := make([]Pulse, 0, len(cmd)*PulsesPerByte+1)
	for _, b := range cmd {
		train = AppendByte(train, b)
	}
	train = append(train, PulseStop)

	return train, nil
}
