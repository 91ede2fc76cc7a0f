// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import "time"

// Pin identifies the GPIO carrying the data line
type Pin int

// PulseGenerator transmits pulse trains on a pin.
// Transmit blocks until the whole train has been sent.
type PulseGenerator interface {
	Transmit(pin Pin, pulses []Pulse) error
}

// Capture is a captured pulse train borrowed from a PulseCapture.
// The pulses are valid until Release is called, and Release must be called
// exactly once when the caller is done with them.
type Capture interface {
	Pulses() []Pulse
	Release()
}

// PulseCapture receives pulse trains observed on a pin.
// Receive blocks for at most timeout and returns a nil Capture when no
// train arrived in that window.
type PulseCapture interface {
	Receive(pin Pin, timeout time.Duration) (Capture, error)
}

// PinController performs the one-time pin setup: open-drain output with
// the transmit and receive signals both routed to the pin.
type PinController interface {
	Configure(pin Pin) error
}

// Recorder observes completed transactions
type Recorder interface {
	RecordReport(shape ReportShape, pulses int, elapsed time.Duration)
	RecordTimeout()
	RecordError(err error)
}
