// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Transceiver runs command/response transactions on the bus.
//
// The first call configures its pin and binds the Transceiver to it; the
// setup is never repeated and another pin is rejected with ErrPinMismatch.
// The setup state belongs to the Transceiver, not the process: each
// Transceiver configures its own pin independently, so drive several pins
// with one Transceiver per pin.
// Transactions are not locked: the bus is half-duplex, so callers sharing
// a Transceiver must serialize their calls.
type Transceiver struct {
	gen       PulseGenerator
	capture   PulseCapture
	pins      PinController
	timeout   time.Duration
	log       *logrus.Entry
	recorders []Recorder

	initOnce sync.Once
	initErr  error
	pin      Pin
}

// Option configures a Transceiver
type Option func(*Transceiver)

// WithReceiveTimeout sets how long Receive waits for a captured train
func WithReceiveTimeout(d time.Duration) Option {
	return func(t *Transceiver) {
		t.timeout = d
	}
}

// WithLogger sets the logger used for transaction tracing
func WithLogger(log *logrus.Entry) Option {
	return func(t *Transceiver) {
		t.log = log
	}
}

// WithRecorder adds a transaction observer. May be given more than once.
func WithRecorder(r Recorder) Option {
	return func(t *Transceiver) {
		t.recorders = append(t.recorders, r)
	}
}

// NewTransceiver creates a Transceiver on top of the given peripheral
func NewTransceiver(gen PulseGenerator, capture PulseCapture, pins PinController, opts ...Option) *Transceiver {
	t := &Transceiver{
		gen:     gen,
		capture: capture,
		pins:    pins,
		timeout: DefaultReceiveTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		t.log = logrus.NewEntry(logger)
	}
	return t
}

// ensureInitialized configures pin on the first call and checks later
// calls against it
func (t *Transceiver) ensureInitialized(pin Pin) error {
	t.initOnce.Do(func() {
		t.pin = pin
		if err := t.pins.Configure(pin); err != nil {
			t.initErr = fmt.Errorf("%w: pin %d: %v", ErrConfigure, pin, err)
			t.log.WithError(err).WithField("pin", pin).Error("pin configuration failed")
			return
		}
		t.log.WithField("pin", pin).Info("pin configured")
	})

	if t.initErr != nil {
		return t.initErr
	}
	if pin != t.pin {
		return fmt.Errorf("%w: bound to %d, got %d", ErrPinMismatch, t.pin, pin)
	}
	return nil
}

// Send transmits a command followed by the stop pulse. It returns once the
// whole train is on the wire.
func (t *Transceiver) Send(pin Pin, cmd []byte) error {
	if err := t.ensureInitialized(pin); err != nil {
		t.recordError(err)
		return err
	}

	train, err := EncodeCommand(cmd)
	if err != nil {
		t.recordError(err)
		return err
	}

	if err := t.gen.Transmit(pin, train); err != nil {
		err = fmt.Errorf("%w: %v", ErrTransmit, err)
		t.recordError(err)
		return err
	}

	t.log.WithFields(logrus.Fields{
		"pin":     pin,
		"command": fmt.Sprintf("% X", cmd),
		"pulses":  len(train),
	}).Debug("command sent")
	return nil
}

// Receive waits for a report and decodes it. A silent bus or a train of
// unrecognized length yields an empty report and a nil error.
func (t *Transceiver) Receive(pin Pin) ([]byte, error) {
	if err := t.ensureInitialized(pin); err != nil {
		t.recordError(err)
		return nil, err
	}

	start := time.Now()
	capture, err := t.capture.Receive(pin, t.timeout)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrCapture, err)
		t.recordError(err)
		return nil, err
	}
	if capture == nil {
		t.log.WithField("pin", pin).Debug("no response")
		for _, r := range t.recorders {
			r.RecordTimeout()
		}
		return nil, nil
	}
	defer capture.Release()

	pulses := capture.Pulses()
	shape, report := DecodeReport(pulses)
	elapsed := time.Since(start)

	t.log.WithFields(logrus.Fields{
		"pin":    pin,
		"pulses": len(pulses),
		"shape":  FormatShape(shape),
		"bytes":  len(report),
	}).Debug("report received")

	for _, r := range t.recorders {
		r.RecordReport(shape, len(pulses), elapsed)
	}
	return report, nil
}

// SendAndReceive sends a command and returns the decoded response
func (t *Transceiver) SendAndReceive(pin Pin, cmd []byte) ([]byte, error) {
	if err := t.Send(pin, cmd); err != nil {
		return nil, err
	}
	return t.Receive(pin)
}

func (t *Transceiver) recordError(err error) {
	for _, r := range t.recorders {
		r.RecordError(err)
	}
}
