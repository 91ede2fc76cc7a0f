// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"time"

	"github.com/Thermoquad/joystat/pkg/joybus"
	"github.com/fxamacker/cbor/v2"
)

// Message is a decoded bridge message
type Message struct {
	Type      uint8
	Seq       uint32
	Body      cbor.RawMessage
	Timestamp time.Time
}

// WirePulse is a pulse as carried on the bridge link
type WirePulse struct {
	_         struct{} `cbor:",toarray"`
	Low       uint16
	LowLevel  uint8
	High      uint16
	HighLevel uint8
}

// ConfigureBody is the MsgConfigure body
type ConfigureBody struct {
	Pin int `cbor:"0,keyasint"`
}

// TransmitBody is the MsgTransmit body
type TransmitBody struct {
	Pin    int         `cbor:"0,keyasint"`
	Pulses []WirePulse `cbor:"1,keyasint"`
}

// ReceiveBody is the MsgReceive body
type ReceiveBody struct {
	Pin          int    `cbor:"0,keyasint"`
	TimeoutTicks uint32 `cbor:"1,keyasint"`
}

// CaptureBody is the MsgCapture body
type CaptureBody struct {
	Pulses []WirePulse `cbor:"0,keyasint"`
}

// ErrorBody is the MsgError body
type ErrorBody struct {
	Code    int    `cbor:"0,keyasint"`
	Message string `cbor:"1,keyasint"`
}

// ToWire converts pulses to their wire form
func ToWire(pulses []joybus.Pulse) []WirePulse {
	out := make([]WirePulse, len(pulses))
	for i, p := range pulses {
		out[i] = WirePulse{
			Low:       p.LowTicks,
			LowLevel:  uint8(p.LowLevel),
			High:      p.HighTicks,
			HighLevel: uint8(p.HighLevel),
		}
	}
	return out
}

// FromWire converts wire pulses back to joybus pulses
func FromWire(pulses []WirePulse) []joybus.Pulse {
	out := make([]joybus.Pulse, len(pulses))
	for i, p := range pulses {
		out[i] = joybus.Pulse{
			LowTicks:  p.Low,
			LowLevel:  joybus.Level(p.LowLevel),
			HighTicks: p.High,
			HighLevel: joybus.Level(p.HighLevel),
		}
	}
	return out
}

// EncodeMessage creates a complete wire-formatted message frame.
// A nil body is sent as CBOR null.
func EncodeMessage(msgType uint8, seq uint32, body interface{}) ([]byte, error) {
	payload, err := cbor.Marshal([]interface{}{uint64(msgType), uint64(seq), body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}
	return EncodeFrame(payload)
}

// ParseMessage parses a frame payload: [msg_type, seq, body]
func ParseMessage(payload []byte) (*Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var raw []cbor.RawMessage
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("expected 3-element array, got %d elements", len(raw))
	}

	var msgType uint64
	if err := cbor.Unmarshal(raw[0], &msgType); err != nil {
		return nil, fmt.Errorf("invalid message type: %w", err)
	}
	if msgType > 255 {
		return nil, fmt.Errorf("message type out of range: %d", msgType)
	}

	var seq uint32
	if err := cbor.Unmarshal(raw[1], &seq); err != nil {
		return nil, fmt.Errorf("invalid sequence number: %w", err)
	}

	return &Message{
		Type:      uint8(msgType),
		Seq:       seq,
		Body:      raw[2],
		Timestamp: time.Now(),
	}, nil
}

// DecodeBody decodes the message body into v
func (m *Message) DecodeBody(v interface{}) error {
	if err := cbor.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("invalid %s body: %w", FormatMessageType(m.Type), err)
	}
	return nil
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgConfigure:
		return "CONFIGURE"
	case MsgTransmit:
		return "TRANSMIT"
	case MsgReceive:
		return "RECEIVE"
	case MsgPing:
		return "PING"
	case MsgAck:
		return "ACK"
	case MsgCapture:
		return "CAPTURE"
	case MsgNoCapture:
		return "NO_CAPTURE"
	case MsgError:
		return "ERROR"
	case MsgPong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}
