// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction marks which way a traced frame traveled.
type Direction uint8

const (
	DirTx Direction = iota
	DirRx
)

func (d Direction) String() string {
	if d == DirTx {
		return "tx"
	}
	return "rx"
}

// TraceRecord is one captured frame with its wall-clock timestamp. Raw
// holds the complete wire form including header and footer, so a capture
// replays byte-exact through the decoder.
type TraceRecord struct {
	Time time.Time `cbor:"1,keyasint"`
	Dir  Direction `cbor:"2,keyasint"`
	Raw  []byte    `cbor:"3,keyasint"`
}

var traceEncMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	traceEncMode, err = opts.EncMode()
	if err != nil {
		panic(err)
	}
}

// TraceWriter appends captured frames to a stream as a CBOR sequence. It
// is safe for concurrent use by the session's read and write paths.
type TraceWriter struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	err error
}

// NewTraceWriter wraps a destination stream. The caller keeps ownership of
// the stream and closes it after the session is done.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{enc: traceEncMode.NewEncoder(w)}
}

// Record captures one frame. Write failures are sticky and reported by
// Err; capture never disturbs live traffic.
func (t *TraceWriter) Record(dir Direction, raw []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	rec := TraceRecord{
		Time: time.Now().UTC(),
		Dir:  dir,
		Raw:  append([]byte(nil), raw...),
	}
	t.err = t.enc.Encode(rec)
}

// Err returns the first write failure, if any.
func (t *TraceWriter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// ReadTrace decodes a capture stream back into records.
func ReadTrace(r io.Reader) ([]TraceRecord, error) {
	dec := cbor.NewDecoder(r)
	var records []TraceRecord
	for {
		var rec TraceRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, err
		}
		records = append(records, rec)
	}
}
