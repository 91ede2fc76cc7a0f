// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim provides an in-memory joybus peripheral with a simulated
// controller attached, for tests and for running the tools without
// hardware.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
)

// Responder produces the train captured on the line after a command.
// A nil train means the device stays silent.
type Responder interface {
	Respond(cmd []byte) []joybus.Pulse
}

// ResponderFunc adapts a function to Responder
type ResponderFunc func(cmd []byte) []joybus.Pulse

// Respond calls f(cmd)
func (f ResponderFunc) Respond(cmd []byte) []joybus.Pulse {
	return f(cmd)
}

// DefaultRingSize is the number of captures the bus holds before dropping
const DefaultRingSize = 4

// ErrNotConfigured is returned when a pin is used before Configure
var ErrNotConfigured = errors.New("sim: pin not configured")

// Bus implements joybus.PulseGenerator, joybus.PulseCapture and
// joybus.PinController in memory
type Bus struct {
	mu          sync.Mutex
	responder   Responder
	configured  map[joybus.Pin]int
	transmitted [][]joybus.Pulse
	outstanding int
	configErr   error

	pending chan []joybus.Pulse
}

// NewBus creates a bus with the given responder attached
func NewBus(responder Responder) *Bus {
	return &Bus{
		responder:  responder,
		configured: make(map[joybus.Pin]int),
		pending:    make(chan []joybus.Pulse, DefaultRingSize),
	}
}

// FailConfigure makes every later Configure call fail with err
func (b *Bus) FailConfigure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configErr = err
}

// Configure records the pin setup
func (b *Bus) Configure(pin joybus.Pin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.configErr != nil {
		return b.configErr
	}
	b.configured[pin]++
	return nil
}

// ConfigureCount returns how many times pin was configured
func (b *Bus) ConfigureCount(pin joybus.Pin) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configured[pin]
}

// Transmit decodes the outbound train and queues the responder's reply
func (b *Bus) Transmit(pin joybus.Pin, pulses []joybus.Pulse) error {
	b.mu.Lock()
	if b.configured[pin] == 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	sent := make([]joybus.Pulse, len(pulses))
	copy(sent, pulses)
	b.transmitted = append(b.transmitted, sent)
	responder := b.responder
	b.mu.Unlock()

	cmd, err := DecodeCommand(pulses)
	if err != nil {
		return err
	}
	if responder == nil {
		return nil
	}
	reply := responder.Respond(cmd)
	if reply == nil {
		return nil
	}

	select {
	case b.pending <- reply:
	default:
		// Ring full, the capture is lost like on the peripheral
	}
	return nil
}

// Inject queues a captured train as if it had been observed on the line.
// Like Transmit it drops the train when the ring is full, and reports
// whether it was queued.
func (b *Bus) Inject(train []joybus.Pulse) bool {
	select {
	case b.pending <- train:
		return true
	default:
		return false
	}
}

// Transmitted returns every train sent so far
func (b *Bus) Transmitted() [][]joybus.Pulse {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]joybus.Pulse, len(b.transmitted))
	copy(out, b.transmitted)
	return out
}

// Outstanding returns the number of captures handed out and not released
func (b *Bus) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outstanding
}

// Receive waits up to timeout for a queued capture
func (b *Bus) Receive(pin joybus.Pin, timeout time.Duration) (joybus.Capture, error) {
	b.mu.Lock()
	if b.configured[pin] == 0 {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrNotConfigured, pin)
	}
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case train := <-b.pending:
		b.mu.Lock()
		b.outstanding++
		b.mu.Unlock()
		return &capture{bus: b, pulses: train}, nil
	case <-timer.C:
		return nil, nil
	}
}

type capture struct {
	bus      *Bus
	pulses   []joybus.Pulse
	released bool
}

func (c *capture) Pulses() []joybus.Pulse {
	return c.pulses
}

func (c *capture) Release() {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.pulses = nil
	c.bus.outstanding--
}

// DecodeCommand converts an outbound train (8N pulses and a stop pulse)
// back into command bytes
func DecodeCommand(train []joybus.Pulse) ([]byte, error) {
	if len(train) == 0 || (len(train)-1)%joybus.PulsesPerByte != 0 {
		return nil, fmt.Errorf("sim: malformed command train of %d pulses", len(train))
	}
	if !train[len(train)-1].IsStop() {
		return nil, fmt.Errorf("sim: command train does not end with a stop pulse")
	}
	cmd := make([]byte, (len(train)-1)/joybus.PulsesPerByte)
	for i := range cmd {
		cmd[i] = joybus.DecodeByte(train[i*joybus.PulsesPerByte:])
	}
	return cmd, nil
}
