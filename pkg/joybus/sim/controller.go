// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sim

import (
	"sync"

	"github.com/Thermoquad/joystat/pkg/joybus"
)

// GameCube controller commands understood by Controller
const (
	CmdIdentity = 0x00
	CmdPoll     = 0x40
	CmdOrigin   = 0x41
	CmdReset    = 0xFF
)

// Standard GameCube controller identity
var DefaultIdentity = [3]byte{0x09, 0x00, 0x03}

// Buttons, first two state bytes
const (
	ButtonA      uint16 = 1 << 8
	ButtonB      uint16 = 1 << 9
	ButtonX      uint16 = 1 << 10
	ButtonY      uint16 = 1 << 11
	ButtonStart  uint16 = 1 << 12
	ButtonDLeft  uint16 = 1 << 0
	ButtonDRight uint16 = 1 << 1
	ButtonDDown  uint16 = 1 << 2
	ButtonDUp    uint16 = 1 << 3
	ButtonZ      uint16 = 1 << 4
	ButtonR      uint16 = 1 << 5
	ButtonL      uint16 = 1 << 6
	buttonOrigin uint16 = 1 << 7
)

// State is a controller input snapshot
type State struct {
	Buttons  uint16
	StickX   uint8
	StickY   uint8
	CStickX  uint8
	CStickY  uint8
	TriggerL uint8
	TriggerR uint8
}

// NeutralState has both sticks centered and nothing pressed
var NeutralState = State{
	Buttons: buttonOrigin,
	StickX:  0x80,
	StickY:  0x80,
	CStickX: 0x80,
	CStickY: 0x80,
}

// Bytes returns the 8-byte state report
func (s State) Bytes() [8]byte {
	return [8]byte{
		byte(s.Buttons >> 8), byte(s.Buttons),
		s.StickX, s.StickY,
		s.CStickX, s.CStickY,
		s.TriggerL, s.TriggerR,
	}
}

// ParseState reads an 8-byte state report. ok is false for any other length.
func ParseState(report []byte) (s State, ok bool) {
	if len(report) != joybus.MaxReportLength {
		return State{}, false
	}
	return State{
		Buttons:  uint16(report[0])<<8 | uint16(report[1]),
		StickX:   report[2],
		StickY:   report[3],
		CStickX:  report[4],
		CStickY:  report[5],
		TriggerL: report[6],
		TriggerR: report[7],
	}, true
}

var buttonNames = []struct {
	mask uint16
	name string
}{
	{ButtonA, "A"}, {ButtonB, "B"}, {ButtonX, "X"}, {ButtonY, "Y"},
	{ButtonStart, "START"}, {ButtonZ, "Z"}, {ButtonL, "L"}, {ButtonR, "R"},
	{ButtonDUp, "UP"}, {ButtonDDown, "DOWN"}, {ButtonDLeft, "LEFT"}, {ButtonDRight, "RIGHT"},
}

// Pressed lists the names of the held buttons
func (s State) Pressed() []string {
	var names []string
	for _, b := range buttonNames {
		if s.Buttons&b.mask != 0 {
			names = append(names, b.name)
		}
	}
	return names
}

// Controller is a Responder behaving like a GameCube controller.
//
// Identity and reset commands get the 3-byte identity. A 3-byte poll gets
// its own 25-pulse echo followed by the 8 state bytes, because the line is
// shared and the capture sees the host's command too. Commands listed in
// Replies get the stored bytes. Anything else is ignored.
type Controller struct {
	mu       sync.Mutex
	identity [3]byte
	state    State

	// Replies maps a command byte to a fixed reply
	Replies map[byte][]byte

	// ExtraPulses appends trailing pulses to every state report to model
	// capture jitter
	ExtraPulses int

	// Silent makes the controller ignore every command
	Silent bool
}

// NewController creates a controller in the neutral state
func NewController() *Controller {
	return &Controller{
		identity: DefaultIdentity,
		state:    NeutralState,
		Replies:  make(map[byte][]byte),
	}
}

// SetState replaces the controller's input state
func (c *Controller) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State returns the controller's input state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Respond implements Responder
func (c *Controller) Respond(cmd []byte) []joybus.Pulse {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Silent || len(cmd) == 0 {
		return nil
	}

	if reply, ok := c.Replies[cmd[0]]; ok {
		return replyTrain(nil, reply)
	}

	switch cmd[0] {
	case CmdIdentity, CmdReset:
		return replyTrain(nil, c.identity[:])

	case CmdPoll:
		if len(cmd) != 3 {
			return nil
		}
		echo, err := joybus.EncodeCommand(cmd)
		if err != nil {
			return nil
		}
		state := c.state.Bytes()
		train := replyTrain(echo, state[:])
		for i := 0; i < c.ExtraPulses; i++ {
			train = append(train, joybus.PulseStop)
		}
		return train

	case CmdOrigin:
		// 10-byte origin report, which has no framing entry
		state := c.state.Bytes()
		return replyTrain(nil, append(state[:], 0x02, 0x02))
	}
	return nil
}

func replyTrain(prefix []joybus.Pulse, data []byte) []joybus.Pulse {
	train := make([]joybus.Pulse, 0, len(prefix)+len(data)*joybus.PulsesPerByte+1)
	train = append(train, prefix...)
	for _, b := range data {
		train = joybus.AppendByte(train, b)
	}
	return append(train, joybus.PulseStop)
}
