// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakePeripheral records transmissions and hands out queued captures
type fakePeripheral struct {
	mu           sync.Mutex
	configured   []Pin
	configureErr error
	transmitErr  error
	captureErr   error
	sent         [][]Pulse
	captures     [][]Pulse
	timeouts     []time.Duration
	handed       int
	released     int
}

func (f *fakePeripheral) Configure(pin Pin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = append(f.configured, pin)
	return f.configureErr
}

func (f *fakePeripheral) Transmit(pin Pin, pulses []Pulse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transmitErr != nil {
		return f.transmitErr
	}
	f.sent = append(f.sent, append([]Pulse(nil), pulses...))
	return nil
}

func (f *fakePeripheral) Receive(pin Pin, timeout time.Duration) (Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, timeout)
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	if len(f.captures) == 0 {
		return nil, nil
	}
	train := f.captures[0]
	f.captures = f.captures[1:]
	f.handed++
	return &fakeCapture{owner: f, pulses: train}, nil
}

type fakeCapture struct {
	owner  *fakePeripheral
	pulses []Pulse
}

func (c *fakeCapture) Pulses() []Pulse { return c.pulses }

func (c *fakeCapture) Release() {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()
	c.owner.released++
}

func newTestTransceiver(f *fakePeripheral, opts ...Option) *Transceiver {
	return NewTransceiver(f, f, f, opts...)
}

func TestTransceiver_SendBuildsTrain(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f)

	cmd := []byte{0x40, 0x03, 0x00}
	if err := tr.Send(5, cmd); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(f.sent) != 1 {
		t.Fatalf("expected 1 transmission, got %d", len(f.sent))
	}
	want, _ := EncodeCommand(cmd)
	got := f.sent[0]
	if len(got) != 25 {
		t.Fatalf("train length = %d, want 25", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pulse %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTransceiver_ConfiguresOnce(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f)

	for i := 0; i < 3; i++ {
		if err := tr.Send(5, []byte{0x00}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if _, err := tr.Receive(5); err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
	}

	if len(f.configured) != 1 || f.configured[0] != 5 {
		t.Errorf("configured = %v, want [5]", f.configured)
	}
}

func TestTransceiver_ConfiguresOnceConcurrently(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.ensureInitialized(2)
		}()
	}
	wg.Wait()

	if len(f.configured) != 1 {
		t.Errorf("Configure called %d times, want 1", len(f.configured))
	}
}

func TestTransceiver_RejectsSecondPin(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f)

	if err := tr.Send(5, []byte{0x00}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	err := tr.Send(6, []byte{0x00})
	if !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("expected ErrPinMismatch, got %v", err)
	}
	if len(f.configured) != 1 {
		t.Errorf("Configure called %d times, want 1", len(f.configured))
	}
	if len(f.sent) != 1 {
		t.Errorf("expected 1 transmission, got %d", len(f.sent))
	}
}

func TestTransceiver_IndependentSetupPerTransceiver(t *testing.T) {
	f := &fakePeripheral{}
	first := newTestTransceiver(f)
	second := newTestTransceiver(f)

	for i := 0; i < 2; i++ {
		if err := first.Send(4, []byte{0x00}); err != nil {
			t.Fatalf("first.Send failed: %v", err)
		}
		if err := second.Send(5, []byte{0x00}); err != nil {
			t.Fatalf("second.Send failed: %v", err)
		}
	}

	if len(f.configured) != 2 || f.configured[0] != 4 || f.configured[1] != 5 {
		t.Errorf("configured = %v, want [4 5]", f.configured)
	}
	if err := first.Send(5, []byte{0x00}); !errors.Is(err, ErrPinMismatch) {
		t.Errorf("first transceiver on pin 5: expected ErrPinMismatch, got %v", err)
	}
}

func TestTransceiver_ConfigureFailureIsLatched(t *testing.T) {
	f := &fakePeripheral{configureErr: errors.New("gpio busy")}
	tr := newTestTransceiver(f)

	for i := 0; i < 2; i++ {
		err := tr.Send(5, []byte{0x00})
		if !errors.Is(err, ErrConfigure) {
			t.Fatalf("call %d: expected ErrConfigure, got %v", i, err)
		}
	}
	if _, err := tr.Receive(5); !errors.Is(err, ErrConfigure) {
		t.Fatalf("Receive: expected ErrConfigure, got %v", err)
	}
	if len(f.configured) != 1 {
		t.Errorf("Configure called %d times, want 1 (no retry)", len(f.configured))
	}
	if len(f.sent) != 0 {
		t.Errorf("expected no transmissions, got %d", len(f.sent))
	}
}

func TestTransceiver_CommandTooLong(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f)

	err := tr.Send(5, make([]byte, MaxCommandLength+1))
	if !errors.Is(err, ErrCommandTooLong) {
		t.Fatalf("expected ErrCommandTooLong, got %v", err)
	}
	if len(f.sent) != 0 {
		t.Errorf("expected no transmissions, got %d", len(f.sent))
	}
}

func TestTransceiver_TransmitError(t *testing.T) {
	f := &fakePeripheral{transmitErr: errors.New("link down")}
	tr := newTestTransceiver(f)

	_, err := tr.SendAndReceive(5, []byte{0x00})
	if !errors.Is(err, ErrTransmit) {
		t.Fatalf("expected ErrTransmit, got %v", err)
	}
	if len(f.timeouts) != 0 {
		t.Error("Receive should not run after a failed Send")
	}
}

func TestTransceiver_CaptureError(t *testing.T) {
	f := &fakePeripheral{captureErr: errors.New("ring corrupted")}
	tr := newTestTransceiver(f)

	_, err := tr.Receive(5)
	if !errors.Is(err, ErrCapture) {
		t.Fatalf("expected ErrCapture, got %v", err)
	}
}

func TestTransceiver_ReceiveShapes(t *testing.T) {
	state := []byte{0x00, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00, 0x00}

	tests := []struct {
		name  string
		train []Pulse
		want  []byte
	}{
		{"9 pulses", buildTrain(0, []byte{0x5A}, 9), []byte{0x5A}},
		{"25 pulses", buildTrain(0, []byte{0x09, 0x00, 0x03}, 25), []byte{0x09, 0x00, 0x03}},
		{"90 pulses", buildTrain(25, state, 90), state},
		{"10 pulses", buildTrain(0, []byte{0x5A}, 10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakePeripheral{captures: [][]Pulse{tt.train}}
			tr := newTestTransceiver(f)

			got, err := tr.Receive(1)
			if err != nil {
				t.Fatalf("Receive failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("report = % X, want % X", got, tt.want)
			}
			if f.handed != 1 || f.released != 1 {
				t.Errorf("handed=%d released=%d, want 1/1", f.handed, f.released)
			}
		})
	}
}

func TestTransceiver_ReceiveTimeout(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f)

	got, err := tr.Receive(1)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty report, got % X", got)
	}
	if f.timeouts[0] != 100*time.Microsecond {
		t.Errorf("timeout = %v, want 100 ticks of 1µs", f.timeouts[0])
	}
	if f.released != 0 {
		t.Errorf("released = %d, want 0", f.released)
	}
}

func TestTransceiver_CustomTimeout(t *testing.T) {
	f := &fakePeripheral{}
	tr := newTestTransceiver(f, WithReceiveTimeout(250*Tick))

	if _, err := tr.Receive(1); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if f.timeouts[0] != 250*time.Microsecond {
		t.Errorf("timeout = %v, want 250µs", f.timeouts[0])
	}
}

func TestTransceiver_SendAndReceiveRecordsStatistics(t *testing.T) {
	stats := NewStatistics()
	f := &fakePeripheral{captures: [][]Pulse{
		buildTrain(0, []byte{0x09, 0x00, 0x03}, 25),
		buildTrain(0, []byte{0x01}, 12),
	}}
	tr := newTestTransceiver(f, WithRecorder(stats))

	if _, err := tr.SendAndReceive(1, []byte{0x00}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SendAndReceive(1, []byte{0x00}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.SendAndReceive(1, []byte{0x00}); err != nil {
		t.Fatal(err)
	}
	tr.Send(1, make([]byte, MaxCommandLength+1))

	if stats.TotalTransactions != 4 {
		t.Errorf("TotalTransactions = %d, want 4", stats.TotalTransactions)
	}
	if stats.IdentityReports != 1 {
		t.Errorf("IdentityReports = %d, want 1", stats.IdentityReports)
	}
	if stats.UnknownReports != 1 {
		t.Errorf("UnknownReports = %d, want 1", stats.UnknownReports)
	}
	if stats.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", stats.Timeouts)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
}
