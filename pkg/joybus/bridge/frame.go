// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "fmt"

// EncodeFrame wraps a CBOR payload with length, CRC, byte stuffing and
// framing bytes
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	// Data section: length + payload, covered by the CRC and stuffed
	data := make([]byte, 0, LengthSize+len(payload)+CRCSize)
	data = append(data, byte(len(payload)>>8), byte(len(payload)))
	data = append(data, payload...)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// stuffBytes escapes START, END and ESC as ESC + (byte XOR EscXor)
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// Decoder implements the bridge frame decoder state machine
type Decoder struct {
	state      int
	length     int
	buffer     []byte
	escapeNext bool
	crc        uint16
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.length = 0
	d.buffer = d.buffer[:0]
	d.escapeNext = false
	d.crc = 0
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed message, or nil if the frame is incomplete.
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	// Unescaped framing bytes always act as delimiters
	if !d.escapeNext {
		switch b {
		case StartByte:
			d.Reset()
			d.state = stateLength1
			return nil, nil
		case EndByte:
			return d.finish()
		case EscByte:
			if d.state != stateIdle {
				d.escapeNext = true
			}
			return nil, nil
		}
	} else {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateIdle:
		// Waiting for START byte
		return nil, nil

	case stateLength1:
		d.length = int(b) << 8
		d.buffer = append(d.buffer, b)
		d.state = stateLength2
		return nil, nil

	case stateLength2:
		d.length |= int(b)
		d.buffer = append(d.buffer, b)
		if d.length > MaxPayloadSize {
			length := d.length
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", length, MaxPayloadSize)
		}
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.buffer = append(d.buffer, b)
		if len(d.buffer) >= LengthSize+d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("unexpected byte 0x%02X after CRC", b)
	}
}

// finish validates a frame on END
func (d *Decoder) finish() (*Message, error) {
	if d.state != stateEnd {
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	calculated := CalculateCRC(d.buffer)
	if d.crc != calculated {
		err := fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculated, d.crc)
		d.Reset()
		return nil, err
	}

	payload := make([]byte, d.length)
	copy(payload, d.buffer[LengthSize:])
	d.Reset()

	return ParseMessage(payload)
}
