// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge drives a joybus pulse bridge: a microcontroller whose
// pulse peripheral does the microsecond timing on behalf of the host.
//
// The host and bridge exchange framed CBOR messages over a byte stream
// (serial port or WebSocket). Bridge is the host side and implements the
// joybus peripheral interfaces; Device is the bridge side and serves the
// protocol on top of any joybus peripheral.
//
// Frame layout:
//
//	START | stuffed(LEN_HI LEN_LO PAYLOAD... CRC_HI CRC_LO) | END
//
// PAYLOAD is the CBOR array [msg_type, seq, body]. The CRC is
// CRC-16-CCITT over the length and payload bytes.
package bridge

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	LengthSize     = 2
	CRCSize        = 2
	MaxPayloadSize = 2048
	MaxFrameSize   = LengthSize + MaxPayloadSize + CRCSize
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message types - Requests (Host → Bridge) 0x10-0x1F
const (
	MsgConfigure = 0x10
	MsgTransmit  = 0x11
	MsgReceive   = 0x12
	MsgPing      = 0x1F
)

// Message types - Responses (Bridge → Host) 0x30-0x3F
const (
	MsgAck       = 0x30
	MsgCapture   = 0x31
	MsgNoCapture = 0x32
	MsgError     = 0x3E
	MsgPong      = 0x3F
)

// Error codes carried in MsgError
const (
	ErrorCodeInvalidRequest = 0x01
	ErrorCodeConfigure      = 0x02
	ErrorCodeTransmit       = 0x03
	ErrorCodeCapture        = 0x04
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength1
	stateLength2
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)

// MaxCapturePulses is the longest capture a Device forwards. At most 9 CBOR
// bytes per pulse keeps the capture frame under MaxPayloadSize; longer
// captures are truncated, which still classifies as a state report.
const MaxCapturePulses = 200

// DefaultRingSize is the number of captures that may be held unreleased
const DefaultRingSize = 4
