// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"bytes"
	"context"
	"testing"
)

func TestTrace_RoundTrip(t *testing.T) {
	tx, err := Marshal(ReqSwitch{MAC: testMAC, On: true})
	if err != nil {
		t.Fatal(err)
	}
	var w fieldWriter
	w.uint16(uint16(CodeAck))
	w.uint16(0x0001)
	w.uint16(AckSuccess)
	w.uint64(uint64(testMAC))
	rx := frameBytes(w.buf)

	var buf bytes.Buffer
	tw := NewTraceWriter(&buf)
	tw.Record(DirTx, tx)
	tw.Record(DirRx, rx)
	if err := tw.Err(); err != nil {
		t.Fatalf("trace write: %v", err)
	}

	records, err := ReadTrace(&buf)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].Dir != DirTx || !bytes.Equal(records[0].Raw, tx) {
		t.Errorf("record 0 mismatch: dir=%s", records[0].Dir)
	}
	if records[1].Dir != DirRx || !bytes.Equal(records[1].Raw, rx) {
		t.Errorf("record 1 mismatch: dir=%s", records[1].Dir)
	}
	if records[0].Time.IsZero() || records[1].Time.Before(records[0].Time) {
		t.Error("record timestamps out of order")
	}
}

func TestTrace_CaptureReplaysThroughDecoder(t *testing.T) {
	wire, err := Marshal(ReqPowerBuffer{MAC: testMAC, Slot: 7})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	tw := NewTraceWriter(&buf)
	tw.Record(DirTx, wire)

	records, err := ReadTrace(&buf)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}

	d := NewDecoder()
	frames, errs := feedBytes(d, records[0].Raw)
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("replay: frames=%d errs=%v", len(frames), errs)
	}
	req, err := ParseRequest(frames[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req != (ReqPowerBuffer{MAC: testMAC, Slot: 7}) {
		t.Errorf("replayed request mismatch: %#v", req)
	}
}

func TestTrace_EmptyStream(t *testing.T) {
	records, err := ReadTrace(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestTrace_SessionCapture(t *testing.T) {
	var buf bytes.Buffer
	tw := NewTraceWriter(&buf)

	sim := newTestSim()
	s := NewSession(sim, Options{Trace: tw})
	if _, err := s.Request(context.Background(), ReqCalibration{MAC: testMAC}, CodeResCalibration); err != nil {
		t.Fatalf("request: %v", err)
	}
	s.Close()

	records, err := ReadTrace(&buf)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected tx and rx records, got %d", len(records))
	}
	if records[0].Dir != DirTx || records[1].Dir != DirRx {
		t.Errorf("directions: got %s, %s", records[0].Dir, records[1].Dir)
	}
}
