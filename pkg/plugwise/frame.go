// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MAC is the 64-bit hardware address of a mesh device. It is immutable
// once a device handle is created and uniquely identifies a physical
// Circle or the Circle+ coordinator.
type MAC uint64

// ParseMAC parses a 16-character hex hardware address, tolerating a
// conventional colon- or dash-separated rendering.
func ParseMAC(s string) (MAC, error) {
	clean := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(clean) != macChars {
		return 0, fmt.Errorf("plugwise: MAC %q: want %d hex chars, have %d", s, macChars, len(clean))
	}
	v, err := strconv.ParseUint(clean, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("plugwise: MAC %q: %w", s, err)
	}
	return MAC(v), nil
}

func (m MAC) String() string {
	return fmt.Sprintf("%016X", uint64(m))
}

// Frame is one checksum-validated protocol message as it came off the
// wire: the message code plus the raw ASCII-hex field characters that
// follow it. Field interpretation is per-code; see messages.go.
type Frame struct {
	code      Code
	data      []byte
	crc       uint16
	raw       []byte
	timestamp time.Time
}

// Code returns the frame's message code.
func (f *Frame) Code() Code { return f.code }

// Data returns the ASCII-hex field characters following the code.
func (f *Frame) Data() []byte { return f.data }

// CRC returns the checksum carried by the frame. It has already been
// verified; a frame with a bad checksum is never constructed.
func (f *Frame) CRC() uint16 { return f.crc }

// Raw returns the complete wire rendering including header and footer.
func (f *Frame) Raw() []byte { return f.raw }

// Timestamp returns the frame's decode timestamp.
func (f *Frame) Timestamp() time.Time { return f.timestamp }

// peekSeq extracts the response sequence counter without a full parse.
// Response payloads open with the 4-char counter the stick assigns.
func (f *Frame) peekSeq() (uint16, bool) {
	if len(f.data) < seqChars {
		return 0, false
	}
	r := newFieldReader(f.data[:seqChars])
	seq := r.uint16()
	return seq, r.err == nil
}

// peekMAC extracts the addressed device's MAC without a full parse. Acks
// carry the MAC after the status field and may omit it entirely.
func (f *Frame) peekMAC() (MAC, bool) {
	offset := seqChars
	if f.code == CodeAck {
		offset = seqChars + 4
	}
	if len(f.data) < offset+macChars {
		return 0, false
	}
	r := newFieldReader(f.data[offset : offset+macChars])
	mac := MAC(r.uint64())
	return mac, r.err == nil
}
