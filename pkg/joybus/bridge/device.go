// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/sirupsen/logrus"
)

// Device serves the bridge protocol on top of a local joybus peripheral
type Device struct {
	gen     joybus.PulseGenerator
	capture joybus.PulseCapture
	pins    joybus.PinController
	log     *logrus.Entry
}

// NewDevice creates a bridge device for the given peripheral
func NewDevice(gen joybus.PulseGenerator, capture joybus.PulseCapture, pins joybus.PinController, log *logrus.Entry) *Device {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Device{
		gen:     gen,
		capture: capture,
		pins:    pins,
		log:     log,
	}
}

// Serve handles requests from rw until reading or writing fails or it hits
// EOF. EOF is reported as a nil error. A request that cannot be answered is
// logged and skipped.
func (d *Device) Serve(rw io.ReadWriter) error {
	decoder := NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := rw.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		for i := 0; i < n; i++ {
			msg, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				d.log.WithError(decodeErr).Warn("request frame dropped")
				continue
			}
			if msg == nil {
				continue
			}

			frame, err := d.handle(msg)
			if err != nil {
				d.log.WithError(err).WithField("seq", msg.Seq).Error("no response sent")
				continue
			}
			if _, err := rw.Write(frame); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

// handle executes one request and returns the encoded response frame
func (d *Device) handle(msg *Message) ([]byte, error) {
	log := d.log.WithFields(logrus.Fields{
		"type": FormatMessageType(msg.Type),
		"seq":  msg.Seq,
	})
	log.Debug("request")

	fail := func(code int, err error) ([]byte, error) {
		log.WithError(err).Warn("request failed")
		return EncodeMessage(MsgError, msg.Seq, ErrorBody{Code: code, Message: err.Error()})
	}

	switch msg.Type {
	case MsgPing:
		return EncodeMessage(MsgPong, msg.Seq, nil)

	case MsgConfigure:
		var body ConfigureBody
		if err := msg.DecodeBody(&body); err != nil {
			return fail(ErrorCodeInvalidRequest, err)
		}
		if err := d.pins.Configure(joybus.Pin(body.Pin)); err != nil {
			return fail(ErrorCodeConfigure, err)
		}
		return EncodeMessage(MsgAck, msg.Seq, nil)

	case MsgTransmit:
		var body TransmitBody
		if err := msg.DecodeBody(&body); err != nil {
			return fail(ErrorCodeInvalidRequest, err)
		}
		if len(body.Pulses) > joybus.MaxCommandPulses {
			return fail(ErrorCodeInvalidRequest, fmt.Errorf("train of %d pulses exceeds %d", len(body.Pulses), joybus.MaxCommandPulses))
		}
		if err := d.gen.Transmit(joybus.Pin(body.Pin), FromWire(body.Pulses)); err != nil {
			return fail(ErrorCodeTransmit, err)
		}
		return EncodeMessage(MsgAck, msg.Seq, nil)

	case MsgReceive:
		var body ReceiveBody
		if err := msg.DecodeBody(&body); err != nil {
			return fail(ErrorCodeInvalidRequest, err)
		}
		timeout := time.Duration(body.TimeoutTicks) * joybus.Tick
		capture, err := d.capture.Receive(joybus.Pin(body.Pin), timeout)
		if err != nil {
			return fail(ErrorCodeCapture, err)
		}
		if capture == nil {
			return EncodeMessage(MsgNoCapture, msg.Seq, nil)
		}
		captured := capture.Pulses()
		if len(captured) > MaxCapturePulses {
			log.WithField("pulses", len(captured)).Warn("capture truncated")
			captured = captured[:MaxCapturePulses]
		}
		pulses := ToWire(captured)
		capture.Release()
		frame, err := EncodeMessage(MsgCapture, msg.Seq, CaptureBody{Pulses: pulses})
		if err != nil {
			return fail(ErrorCodeCapture, err)
		}
		return frame, nil

	default:
		return fail(ErrorCodeInvalidRequest, fmt.Errorf("unsupported message type 0x%02X", msg.Type))
	}
}
