// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import "errors"

var (
	// ErrCommandTooLong is returned when a command exceeds MaxCommandLength
	ErrCommandTooLong = errors.New("joybus: command too long")

	// ErrConfigure wraps a pin configuration failure. The failure is
	// latched: every later call on the same Transceiver returns it.
	ErrConfigure = errors.New("joybus: pin configuration failed")

	// ErrPinMismatch is returned when a Transceiver already bound to one
	// pin is asked to drive another
	ErrPinMismatch = errors.New("joybus: transceiver is bound to a different pin")

	// ErrTransmit wraps a pulse generator failure
	ErrTransmit = errors.New("joybus: transmit failed")

	// ErrCapture wraps a pulse capture failure
	ErrCapture = errors.New("joybus: capture failed")
)
