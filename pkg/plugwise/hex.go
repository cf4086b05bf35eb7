// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"fmt"
	"math"
)

// Payload fields are fixed-width uppercase hex: two characters per byte,
// floats as the hex of their IEEE-754 bits. fieldReader consumes a payload
// left to right with a sticky error, fieldWriter builds one.

type fieldReader struct {
	buf []byte
	off int
	err error
}

func newFieldReader(buf []byte) *fieldReader {
	return &fieldReader{buf: buf}
}

func (r *fieldReader) take(chars int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+chars > len(r.buf) {
		r.err = &FrameError{Reason: fmt.Sprintf("field truncated: need %d chars, have %d", chars, len(r.buf)-r.off)}
		return nil
	}
	field := r.buf[r.off : r.off+chars]
	r.off += chars
	return field
}

func (r *fieldReader) hex(chars int) uint64 {
	field := r.take(chars)
	if field == nil {
		return 0
	}
	var v uint64
	for _, c := range field {
		var nibble uint64
		switch {
		case c >= '0' && c <= '9':
			nibble = uint64(c - '0')
		case c >= 'A' && c <= 'F':
			nibble = uint64(c-'A') + 10
		case c >= 'a' && c <= 'f':
			nibble = uint64(c-'a') + 10
		default:
			r.err = &FrameError{Reason: fmt.Sprintf("non-hex character 0x%02X in field", c)}
			return 0
		}
		v = v<<4 | nibble
	}
	return v
}

func (r *fieldReader) uint8() uint8   { return uint8(r.hex(2)) }
func (r *fieldReader) uint16() uint16 { return uint16(r.hex(4)) }
func (r *fieldReader) uint32() uint32 { return uint32(r.hex(8)) }
func (r *fieldReader) uint64() uint64 { return r.hex(16) }

func (r *fieldReader) float32() float32 {
	return math.Float32frombits(r.uint32())
}

func (r *fieldReader) string(chars int) string {
	field := r.take(chars)
	if field == nil {
		return ""
	}
	return string(field)
}

func (r *fieldReader) logDate() LogDate {
	return LogDate{
		Year:    r.uint8(),
		Month:   r.uint8(),
		Minutes: r.uint16(),
	}
}

func (r *fieldReader) remaining() int {
	return len(r.buf) - r.off
}

// done reports the sticky error, or complains about unconsumed trailing
// characters. Responses are fixed-layout; trailing data means a layout
// mismatch with the firmware.
func (r *fieldReader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return &FrameError{Reason: fmt.Sprintf("%d unconsumed payload chars", len(r.buf)-r.off)}
	}
	return nil
}

type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) hex(v uint64, chars int) {
	const digits = "0123456789ABCDEF"
	for i := chars - 1; i >= 0; i-- {
		w.buf = append(w.buf, digits[(v>>(uint(i)*4))&0xF])
	}
}

func (w *fieldWriter) uint8(v uint8)   { w.hex(uint64(v), 2) }
func (w *fieldWriter) uint16(v uint16) { w.hex(uint64(v), 4) }
func (w *fieldWriter) uint32(v uint32) { w.hex(uint64(v), 8) }
func (w *fieldWriter) uint64(v uint64) { w.hex(v, 16) }

func (w *fieldWriter) float32(v float32) {
	w.uint32(math.Float32bits(v))
}

func (w *fieldWriter) text(s string) {
	w.buf = append(w.buf, s...)
}

func (w *fieldWriter) logDate(d LogDate) {
	w.uint8(d.Year)
	w.uint8(d.Month)
	w.uint16(d.Minutes)
}
