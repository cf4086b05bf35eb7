// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"bytes"
	"fmt"
	"time"
)

// Decoder implements the streaming frame decoder state machine. The serial
// stream delivers arbitrary chunking, so bytes are fed one at a time;
// anything that is not a recognized frame (boot banners, mesh chatter cut
// short, line noise) is skipped until the next header sequence.
type Decoder struct {
	state       int
	headerIndex int
	body        []byte
	rawBuffer   []byte
	noiseBytes  uint64
}

// NewDecoder creates a new frame decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		body:      make([]byte, 0, MaxFrameChars),
		rawBuffer: make([]byte, 0, MaxFrameChars+8),
	}
}

// Reset returns the decoder to header hunting and discards partial state.
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.headerIndex = 0
	d.body = d.body[:0]
	d.rawBuffer = d.rawBuffer[:0]
}

// NoiseBytes returns the cumulative count of bytes skipped while hunting
// for a frame header.
func (d *Decoder) NoiseBytes() uint64 { return d.noiseBytes }

// DecodeByte feeds one byte through the state machine. It returns a
// completed, checksum-verified frame, or nil while the frame is
// incomplete. A non-nil error reports an invalid frame that was dropped;
// the decoder has already resynchronized and the error is informational.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		if b == frameHeader[0] {
			d.headerIndex = 1
			d.rawBuffer = append(d.rawBuffer[:0], b)
			d.state = stateHeader
			return nil, nil
		}
		d.noiseBytes++
		return nil, nil

	case stateHeader:
		if b != frameHeader[d.headerIndex] {
			d.resyncHeader(b)
			return nil, nil
		}
		d.rawBuffer = append(d.rawBuffer, b)
		d.headerIndex++
		if d.headerIndex == len(frameHeader) {
			d.state = stateBody
		}
		return nil, nil

	case stateBody:
		d.rawBuffer = append(d.rawBuffer, b)
		if b == frameFooter[0] {
			d.state = stateFooter
			return nil, nil
		}
		if len(d.body) >= MaxFrameChars {
			d.Reset()
			return nil, &FrameError{Reason: fmt.Sprintf("body exceeds %d chars without footer", MaxFrameChars)}
		}
		d.body = append(d.body, b)
		return nil, nil

	case stateFooter:
		d.rawBuffer = append(d.rawBuffer, b)
		if b != frameFooter[1] {
			d.Reset()
			return nil, &FrameError{Reason: fmt.Sprintf("expected LF after CR, got 0x%02X", b)}
		}
		frame, err := d.complete()
		d.Reset()
		return frame, err

	default:
		d.Reset()
		return nil, &FrameError{Reason: fmt.Sprintf("invalid state %d", d.state)}
	}
}

// resyncHeader recovers from a header mismatch. The consumed prefix can
// itself contain the start of a real header (a stray 0x05 immediately
// before a frame), so the prefix plus the current byte is re-scanned for
// the longest tail that still matches, not dropped wholesale.
func (d *Decoder) resyncHeader(b byte) {
	buf := make([]byte, 0, len(frameHeader)+1)
	buf = append(buf, d.rawBuffer[:d.headerIndex]...)
	buf = append(buf, b)
	d.Reset()

	for start := 1; start < len(buf); start++ {
		tail := buf[start:]
		if bytes.HasPrefix(frameHeader[:], tail) {
			d.noiseBytes += uint64(start)
			d.rawBuffer = append(d.rawBuffer[:0], tail...)
			d.headerIndex = len(tail)
			d.state = stateHeader
			return
		}
	}
	d.noiseBytes += uint64(len(buf))
}

// complete validates the accumulated body and builds the frame. The body
// is code + fields + 4 CRC chars; the CRC covers everything before it.
func (d *Decoder) complete() (*Frame, error) {
	if len(d.body) < codeChars+crcChars {
		return nil, &FrameError{Reason: fmt.Sprintf("short frame: %d chars", len(d.body))}
	}

	payload := d.body[:len(d.body)-crcChars]
	crcField := d.body[len(d.body)-crcChars:]

	r := newFieldReader(crcField)
	wantCRC := r.uint16()
	if r.err != nil {
		return nil, &FrameError{Reason: "CRC field is not hex"}
	}

	gotCRC := CalculateCRC(payload)
	if gotCRC != wantCRC {
		return nil, &FrameError{
			Reason:   fmt.Sprintf("CRC mismatch: calculated 0x%04X, frame carries 0x%04X", gotCRC, wantCRC),
			Checksum: true,
		}
	}

	cr := newFieldReader(payload[:codeChars])
	code := Code(cr.uint16())
	if cr.err != nil {
		return nil, &FrameError{Reason: "message code is not hex"}
	}

	frame := &Frame{
		code:      code,
		data:      append([]byte(nil), payload[codeChars:]...),
		crc:       wantCRC,
		raw:       append([]byte(nil), d.rawBuffer...),
		timestamp: time.Now(),
	}
	return frame, nil
}
