// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBridgeTimeout is returned when the bridge does not answer a request in time
	ErrBridgeTimeout = errors.New("bridge: no response")

	// ErrBridgeClosed is returned after the link has been closed or lost
	ErrBridgeClosed = errors.New("bridge: connection closed")

	// ErrCaptureRingFull is returned by Receive while every capture slot is
	// held by an unreleased capture
	ErrCaptureRingFull = errors.New("bridge: capture ring full")

	// ErrUnexpectedResponse is returned when the bridge answers with the wrong message type
	ErrUnexpectedResponse = errors.New("bridge: unexpected response")
)

// RemoteError is a failure reported by the bridge
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge error 0x%02X: %s", e.Code, e.Message)
}

// DefaultResponseTimeout bounds the wait for any bridge response, on top of
// the capture timeout for receive requests
const DefaultResponseTimeout = 250 * time.Millisecond

// Bridge is the host side of a pulse bridge link. It implements
// joybus.PulseGenerator, joybus.PulseCapture and joybus.PinController.
type Bridge struct {
	conn            io.ReadWriteCloser
	log             *logrus.Entry
	responseTimeout time.Duration

	reqMu sync.Mutex
	seq   uint32

	messages  chan *Message
	readErr   chan error
	done      chan struct{}
	closeOnce sync.Once

	ring chan struct{}
}

// Option configures a Bridge
type Option func(*Bridge)

// WithResponseTimeout sets how long a request waits for its response
func WithResponseTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.responseTimeout = d
	}
}

// WithRingSize sets how many captures may be held unreleased
func WithRingSize(n int) Option {
	return func(b *Bridge) {
		b.ring = make(chan struct{}, n)
	}
}

// WithLogger sets the bridge logger
func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// New starts a Bridge on conn. The Bridge owns conn and closes it on Close.
func New(conn io.ReadWriteCloser, opts ...Option) *Bridge {
	b := &Bridge{
		conn:            conn,
		responseTimeout: DefaultResponseTimeout,
		messages:        make(chan *Message, 16),
		readErr:         make(chan error, 1),
		done:            make(chan struct{}),
		ring:            make(chan struct{}, DefaultRingSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logrus.NewEntry(logrus.StandardLogger())
	}

	go b.readLoop()
	return b
}

// Close stops the reader and closes the connection
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.conn.Close()
	})
	return err
}

func (b *Bridge) readLoop() {
	decoder := NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := b.conn.Read(buf)
		if err != nil {
			select {
			case b.readErr <- err:
			default:
			}
			return
		}

		for i := 0; i < n; i++ {
			msg, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				b.log.WithError(decodeErr).Warn("bridge frame dropped")
				continue
			}
			if msg == nil {
				continue
			}
			select {
			case b.messages <- msg:
			case <-b.done:
				return
			}
		}
	}
}

// request sends one message and waits for the response carrying the same
// sequence number. Stale responses to earlier timed-out requests are dropped.
func (b *Bridge) request(msgType uint8, body interface{}, wait time.Duration) (*Message, error) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	b.seq++
	seq := b.seq

	frame, err := EncodeMessage(msgType, seq, body)
	if err != nil {
		return nil, err
	}

	select {
	case <-b.done:
		return nil, ErrBridgeClosed
	default:
	}

	timer := time.NewTimer(wait + b.responseTimeout)
	defer timer.Stop()

	// The write counts against the response deadline
	written := make(chan error, 1)
	go func() {
		_, err := b.conn.Write(frame)
		written <- err
	}()

	select {
	case err := <-written:
		if err != nil {
			return nil, fmt.Errorf("%w: write: %v", ErrBridgeClosed, err)
		}
	case <-b.done:
		return nil, ErrBridgeClosed
	case <-timer.C:
		// A partial frame may be on the wire, so the link is unusable
		b.log.WithField("seq", seq).Error("bridge write stalled, closing link")
		b.Close()
		return nil, fmt.Errorf("%w: write %s seq=%d", ErrBridgeTimeout, FormatMessageType(msgType), seq)
	}

	for {
		select {
		case msg := <-b.messages:
			if msg.Seq != seq {
				b.log.WithFields(logrus.Fields{
					"type": FormatMessageType(msg.Type),
					"seq":  msg.Seq,
				}).Debug("stale bridge response dropped")
				continue
			}
			if msg.Type == MsgError {
				var body ErrorBody
				if err := msg.DecodeBody(&body); err != nil {
					return nil, err
				}
				return nil, &RemoteError{Code: body.Code, Message: body.Message}
			}
			return msg, nil

		case err := <-b.readErr:
			b.readErr <- err
			return nil, fmt.Errorf("%w: %v", ErrBridgeClosed, err)

		case <-b.done:
			return nil, ErrBridgeClosed

		case <-timer.C:
			return nil, fmt.Errorf("%w: %s seq=%d", ErrBridgeTimeout, FormatMessageType(msgType), seq)
		}
	}
}

func expect(msg *Message, types ...uint8) error {
	for _, t := range types {
		if msg.Type == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (0x%02X)", ErrUnexpectedResponse, FormatMessageType(msg.Type), msg.Type)
}

// Ping checks that the bridge is answering
func (b *Bridge) Ping() (time.Duration, error) {
	start := time.Now()
	msg, err := b.request(MsgPing, nil, 0)
	if err != nil {
		return 0, err
	}
	if err := expect(msg, MsgPong); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Configure implements joybus.PinController
func (b *Bridge) Configure(pin joybus.Pin) error {
	msg, err := b.request(MsgConfigure, ConfigureBody{Pin: int(pin)}, 0)
	if err != nil {
		return err
	}
	return expect(msg, MsgAck)
}

// Transmit implements joybus.PulseGenerator. It returns once the bridge
// acknowledges that the train has been sent.
func (b *Bridge) Transmit(pin joybus.Pin, pulses []joybus.Pulse) error {
	body := TransmitBody{Pin: int(pin), Pulses: ToWire(pulses)}
	msg, err := b.request(MsgTransmit, body, pulseDuration(pulses))
	if err != nil {
		return err
	}
	return expect(msg, MsgAck)
}

// Receive implements joybus.PulseCapture
func (b *Bridge) Receive(pin joybus.Pin, timeout time.Duration) (joybus.Capture, error) {
	select {
	case b.ring <- struct{}{}:
	default:
		return nil, ErrCaptureRingFull
	}

	body := ReceiveBody{Pin: int(pin), TimeoutTicks: uint32(timeout / joybus.Tick)}
	msg, err := b.request(MsgReceive, body, timeout)
	if err != nil {
		<-b.ring
		return nil, err
	}

	switch msg.Type {
	case MsgNoCapture:
		<-b.ring
		return nil, nil
	case MsgCapture:
		var capture CaptureBody
		if err := msg.DecodeBody(&capture); err != nil {
			<-b.ring
			return nil, err
		}
		return &ringCapture{ring: b.ring, pulses: FromWire(capture.Pulses)}, nil
	default:
		<-b.ring
		return nil, expect(msg, MsgCapture, MsgNoCapture)
	}
}

// ringCapture holds one capture ring slot until released
type ringCapture struct {
	once   sync.Once
	ring   chan struct{}
	pulses []joybus.Pulse
}

func (c *ringCapture) Pulses() []joybus.Pulse {
	return c.pulses
}

func (c *ringCapture) Release() {
	c.once.Do(func() {
		c.pulses = nil
		<-c.ring
	})
}

func pulseDuration(pulses []joybus.Pulse) time.Duration {
	var ticks uint64
	for _, p := range pulses {
		ticks += uint64(p.Period())
	}
	return time.Duration(ticks) * joybus.Tick
}
