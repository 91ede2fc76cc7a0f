// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package joybus

// ReportShape identifies how a captured train is interpreted.
// The controller sends no length field, so the shape comes from the
// captured pulse count alone.
type ReportShape int

// Report shapes
const (
	ReportUnknown  ReportShape = iota
	ReportShort                // 1 byte, e.g. status ack
	ReportIdentity             // 3 bytes, e.g. device identity
	ReportState                // 8 bytes, e.g. controller state poll
)

// frameShape maps a pulse count to a report layout
type frameShape struct {
	shape     ReportShape
	pulses    int
	atLeast   bool // match counts >= pulses instead of == pulses
	offset    int  // leading pulses skipped before the first byte
	byteCount int
}

// Empirical thresholds. The state report tolerates extra captured pulses
// and skips the 25-pulse command echo that precedes it on the shared line.
var frameShapes = []frameShape{
	{shape: ReportShort, pulses: 9, offset: 0, byteCount: 1},
	{shape: ReportIdentity, pulses: 25, offset: 0, byteCount: 3},
	{shape: ReportState, pulses: 90, atLeast: true, offset: 25, byteCount: 8},
}

func lookupShape(count int) (frameShape, bool) {
	for _, fs := range frameShapes {
		if count == fs.pulses || (fs.atLeast && count >= fs.pulses) {
			return fs, true
		}
	}
	return frameShape{}, false
}

// ClassifyReport returns the report shape for a captured pulse count
func ClassifyReport(count int) ReportShape {
	fs, ok := lookupShape(count)
	if !ok {
		return ReportUnknown
	}
	return fs.shape
}

// ReportLength returns the number of bytes a report shape decodes to
func ReportLength(shape ReportShape) int {
	for _, fs := range frameShapes {
		if fs.shape == shape {
			return fs.byteCount
		}
	}
	return 0
}

// DecodeReport decodes a captured train into report bytes according to its
// pulse count. Unrecognized counts decode to an empty report.
func DecodeReport(train []Pulse) (ReportShape, []byte) {
	fs, ok := lookupShape(len(train))
	if !ok {
		return ReportUnknown, nil
	}

	report := make([]byte, fs.byteCount)
	for i := range report {
		start := fs.offset + i*PulsesPerByte
		report[i] = DecodeByte(train[start : start+PulsesPerByte])
	}
	return fs.shape, report
}
