// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
)

func newTransceiver(c *Controller) (*joybus.Transceiver, *Bus) {
	bus := NewBus(c)
	return joybus.NewTransceiver(bus, bus, bus), bus
}

func TestController_Identity(t *testing.T) {
	tr, bus := newTransceiver(NewController())

	report, err := tr.SendAndReceive(4, []byte{CmdIdentity})
	if err != nil {
		t.Fatalf("SendAndReceive failed: %v", err)
	}
	if !bytes.Equal(report, DefaultIdentity[:]) {
		t.Errorf("identity = % X, want % X", report, DefaultIdentity)
	}
	if bus.Outstanding() != 0 {
		t.Errorf("outstanding captures = %d, want 0", bus.Outstanding())
	}
}

func TestController_PollState(t *testing.T) {
	c := NewController()
	state := State{Buttons: ButtonA | ButtonStart, StickX: 0x20, StickY: 0xE0, CStickX: 0x80, CStickY: 0x80, TriggerL: 0x10, TriggerR: 0xF0}
	c.SetState(state)
	tr, _ := newTransceiver(c)

	report, err := tr.SendAndReceive(4, []byte{CmdPoll, 0x03, 0x00})
	if err != nil {
		t.Fatalf("SendAndReceive failed: %v", err)
	}
	want := state.Bytes()
	if !bytes.Equal(report, want[:]) {
		t.Errorf("state = % X, want % X", report, want)
	}
}

func TestController_PollWithJitterPulses(t *testing.T) {
	c := NewController()
	c.ExtraPulses = 3
	tr, _ := newTransceiver(c)

	report, err := tr.SendAndReceive(4, []byte{CmdPoll, 0x03, 0x00})
	if err != nil {
		t.Fatalf("SendAndReceive failed: %v", err)
	}
	want := NeutralState.Bytes()
	if !bytes.Equal(report, want[:]) {
		t.Errorf("state = % X, want % X", report, want)
	}
}

func TestController_UnframedAndSilent(t *testing.T) {
	tests := []struct {
		name string
		cmd  []byte
		ctrl func(*Controller)
	}{
		{"origin report has no framing entry", []byte{CmdOrigin}, nil},
		{"unknown command is ignored", []byte{0x55}, nil},
		{"short poll is ignored", []byte{CmdPoll}, nil},
		{"silent controller", []byte{CmdIdentity}, func(c *Controller) { c.Silent = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController()
			if tt.ctrl != nil {
				tt.ctrl(c)
			}
			tr, bus := newTransceiver(c)

			report, err := tr.SendAndReceive(4, tt.cmd)
			if err != nil {
				t.Fatalf("SendAndReceive failed: %v", err)
			}
			if len(report) != 0 {
				t.Errorf("report = % X, want empty", report)
			}
			if bus.Outstanding() != 0 {
				t.Errorf("outstanding captures = %d, want 0", bus.Outstanding())
			}
		})
	}
}

func TestController_FixedReply(t *testing.T) {
	c := NewController()
	c.Replies[0x03] = []byte{0xB7}
	tr, _ := newTransceiver(c)

	report, err := tr.SendAndReceive(4, []byte{0x03, 0x80, 0x01})
	if err != nil {
		t.Fatalf("SendAndReceive failed: %v", err)
	}
	if !bytes.Equal(report, []byte{0xB7}) {
		t.Errorf("report = % X, want B7", report)
	}
}

func TestBus_RequiresConfigure(t *testing.T) {
	bus := NewBus(NewController())

	if err := bus.Transmit(1, []joybus.Pulse{joybus.PulseStop}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Transmit: expected ErrNotConfigured, got %v", err)
	}
	if _, err := bus.Receive(1, time.Millisecond); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Receive: expected ErrNotConfigured, got %v", err)
	}
}

func TestBus_ConfigureFailurePropagates(t *testing.T) {
	bus := NewBus(NewController())
	bus.FailConfigure(errors.New("no such gpio"))
	tr := joybus.NewTransceiver(bus, bus, bus)

	if _, err := tr.SendAndReceive(4, []byte{CmdIdentity}); !errors.Is(err, joybus.ErrConfigure) {
		t.Fatalf("expected ErrConfigure, got %v", err)
	}
}

func TestBus_InjectAndRelease(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Configure(1); err != nil {
		t.Fatal(err)
	}
	bus.Inject(joybus.AppendByte(nil, 0x42))

	capture, err := bus.Receive(1, time.Millisecond)
	if err != nil || capture == nil {
		t.Fatalf("Receive = %v, %v", capture, err)
	}
	if bus.Outstanding() != 1 {
		t.Errorf("outstanding = %d, want 1", bus.Outstanding())
	}
	capture.Release()
	capture.Release()
	if bus.Outstanding() != 0 {
		t.Errorf("outstanding = %d, want 0 after release", bus.Outstanding())
	}
}

func TestBus_InjectDropsWhenRingFull(t *testing.T) {
	bus := NewBus(nil)
	train := joybus.AppendByte(nil, 0x42)

	for i := 0; i < DefaultRingSize; i++ {
		if !bus.Inject(train) {
			t.Fatalf("Inject %d dropped with room in the ring", i)
		}
	}
	if bus.Inject(train) {
		t.Error("Inject queued past the ring size")
	}
}

func TestBus_RecordsTransmittedTrains(t *testing.T) {
	tr, bus := newTransceiver(NewController())
	bus.Configure(4)

	if err := tr.Send(4, []byte{CmdPoll, 0x03, 0x01}); err != nil {
		t.Fatal(err)
	}
	sent := bus.Transmitted()
	if len(sent) != 1 || len(sent[0]) != 25 {
		t.Fatalf("transmitted = %v", sent)
	}
	cmd, err := DecodeCommand(sent[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cmd, []byte{CmdPoll, 0x03, 0x01}) {
		t.Errorf("decoded command = % X", cmd)
	}
}

func TestDecodeCommand_Malformed(t *testing.T) {
	if _, err := DecodeCommand(nil); err == nil {
		t.Error("expected error for empty train")
	}
	if _, err := DecodeCommand(joybus.AppendByte(nil, 0x00)); err == nil {
		t.Error("expected error for train without stop pulse")
	}
	bad := joybus.AppendByte(nil, 0x00)
	bad = append(bad, joybus.PulseOne)
	if _, err := DecodeCommand(bad); err == nil {
		t.Error("expected error for train ending in a data pulse")
	}
}

func TestParseState(t *testing.T) {
	state := State{Buttons: ButtonB | ButtonZ | ButtonDUp, StickX: 1, StickY: 2, CStickX: 3, CStickY: 4, TriggerL: 5, TriggerR: 6}
	b := state.Bytes()

	got, ok := ParseState(b[:])
	if !ok {
		t.Fatal("ParseState rejected an 8-byte report")
	}
	if got != state {
		t.Errorf("ParseState = %+v, want %+v", got, state)
	}

	pressed := got.Pressed()
	want := []string{"B", "Z", "UP"}
	if len(pressed) != len(want) {
		t.Fatalf("Pressed = %v, want %v", pressed, want)
	}
	for i := range want {
		if pressed[i] != want[i] {
			t.Errorf("Pressed[%d] = %q, want %q", i, pressed[i], want[i])
		}
	}

	if _, ok := ParseState(b[:3]); ok {
		t.Error("ParseState accepted a 3-byte report")
	}
	if len(NeutralState.Pressed()) != 0 {
		t.Errorf("NeutralState.Pressed = %v, want none", NeutralState.Pressed())
	}
}
