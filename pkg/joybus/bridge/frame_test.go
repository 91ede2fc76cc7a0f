// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"testing"

	"github.com/Thermoquad/joystat/pkg/joybus"
)

func decodeAll(t *testing.T, d *Decoder, data []byte) []*Message {
	t.Helper()
	var msgs []*Message
	for _, b := range data {
		msg, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("Decoder error: %v", err)
		}
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func TestEncodeMessage_RoundTrip(t *testing.T) {
	train, _ := joybus.EncodeCommand([]byte{0x40, 0x03, 0x00})

	tests := []struct {
		name    string
		msgType uint8
		seq     uint32
		body    interface{}
	}{
		{"ping without body", MsgPing, 1, nil},
		{"configure", MsgConfigure, 2, ConfigureBody{Pin: 18}},
		{"transmit", MsgTransmit, 3, TransmitBody{Pin: 18, Pulses: ToWire(train)}},
		{"receive", MsgReceive, 0x7E7F7D, ReceiveBody{Pin: 18, TimeoutTicks: 100}},
		{"error", MsgError, 5, ErrorBody{Code: ErrorCodeTransmit, Message: "busy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeMessage(tt.msgType, tt.seq, tt.body)
			if err != nil {
				t.Fatalf("EncodeMessage failed: %v", err)
			}
			if frame[0] != StartByte {
				t.Errorf("frame should start with StartByte, got 0x%02X", frame[0])
			}
			if frame[len(frame)-1] != EndByte {
				t.Errorf("frame should end with EndByte, got 0x%02X", frame[len(frame)-1])
			}
			for i, b := range frame[1 : len(frame)-1] {
				if b == StartByte || b == EndByte {
					t.Errorf("unescaped framing byte 0x%02X at %d", b, i+1)
				}
			}

			msgs := decodeAll(t, NewDecoder(), frame)
			if len(msgs) != 1 {
				t.Fatalf("expected 1 message, got %d", len(msgs))
			}
			if msgs[0].Type != tt.msgType || msgs[0].Seq != tt.seq {
				t.Errorf("got type 0x%02X seq %d, want 0x%02X seq %d", msgs[0].Type, msgs[0].Seq, tt.msgType, tt.seq)
			}
		})
	}
}

func TestTransmitBody_PulsesSurvive(t *testing.T) {
	train, _ := joybus.EncodeCommand([]byte{0xA5, 0x00, 0xFF})
	frame, err := EncodeMessage(MsgTransmit, 9, TransmitBody{Pin: 3, Pulses: ToWire(train)})
	if err != nil {
		t.Fatal(err)
	}
	msgs := decodeAll(t, NewDecoder(), frame)

	var body TransmitBody
	if err := msgs[0].DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	got := FromWire(body.Pulses)
	if body.Pin != 3 || len(got) != len(train) {
		t.Fatalf("pin=%d pulses=%d", body.Pin, len(got))
	}
	for i := range train {
		if got[i] != train[i] {
			t.Errorf("pulse %d = %v, want %v", i, got[i], train[i])
		}
	}
}

func TestDecoder_SkipsNoiseBetweenFrames(t *testing.T) {
	a, _ := EncodeMessage(MsgAck, 1, nil)
	b, _ := EncodeMessage(MsgPong, 2, nil)

	stream := []byte{0x00, 0x13, EscByte}
	stream = append(stream, a...)
	stream = append(stream, 0x55, 0xAA)
	stream = append(stream, b...)

	msgs := decodeAll(t, NewDecoder(), stream)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Type != MsgAck || msgs[1].Type != MsgPong {
		t.Errorf("types = %s, %s", FormatMessageType(msgs[0].Type), FormatMessageType(msgs[1].Type))
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	frame, _ := EncodeMessage(MsgConfigure, 1, ConfigureBody{Pin: 2})
	corrupted := bytes.Clone(frame)
	corrupted[len(corrupted)-2] ^= 0x01

	d := NewDecoder()
	var lastErr error
	for _, b := range corrupted {
		if _, err := d.DecodeByte(b); err != nil {
			lastErr = err
		}
	}
	if lastErr == nil {
		t.Fatal("expected an error for corrupted frame")
	}

	// Decoder recovers on the next frame
	msgs := decodeAll(t, d, frame)
	if len(msgs) != 1 {
		t.Fatalf("expected recovery, got %d messages", len(msgs))
	}
}

func TestDecoder_LengthTooLarge(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(StartByte)
	d.DecodeByte(0x80)
	if _, err := d.DecodeByte(0x00); err == nil {
		t.Fatal("expected invalid length error")
	}
}

func TestEncodeFrame_PayloadTooLarge(t *testing.T) {
	if _, err := EncodeFrame(make([]byte, MaxPayloadSize+1)); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestCalculateCRC_KnownValue(t *testing.T) {
	// CRC-16/CCITT-FALSE check value
	if got := CalculateCRC([]byte("123456789")); got != 0x29B1 {
		t.Errorf("CalculateCRC = 0x%04X, want 0x29B1", got)
	}
}
