// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"bytes"
	"testing"
	"time"
)

// decodeOne wraps a payload in framing and runs it through the decoder.
func decodeOne(t *testing.T, payload []byte) *Frame {
	t.Helper()
	d := NewDecoder()
	frames, errs := feedBytes(d, frameBytes(payload))
	if len(errs) != 0 {
		t.Fatalf("decode errors: %v", errs)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	return frames[0]
}

func TestMarshal_SwitchOn(t *testing.T) {
	wire, err := Marshal(ReqSwitch{MAC: 0x0123456789ABCDEF, On: true})
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("00170123456789ABCDEF01")
	expected := frameBytes(payload)
	if !bytes.Equal(wire, expected) {
		t.Errorf("wire mismatch:\nexpected %q\ngot      %q", expected, wire)
	}
	if !bytes.HasPrefix(wire, frameHeader[:]) {
		t.Error("missing frame header")
	}
	if !bytes.HasSuffix(wire, frameFooter[:]) {
		t.Error("missing frame footer")
	}
}

func TestParseResponse_Ack(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		status  uint16
		mac     MAC
		hasMAC  bool
		ok      bool
	}{
		{"success with MAC", "000000C10123456789ABCDEF", AckSuccess, 0x0123456789ABCDEF, true, true},
		{"error with MAC", "000100C20123456789ABCDEF", AckError, 0x0123456789ABCDEF, true, false},
		{"bare success", "000200C1", AckSuccess, 0, false, true},
		{"legacy zero status", "00030000", 0, 0, false, true},
		{"timed out", "000400E1", AckTimedOut, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := decodeOne(t, []byte("0000"+tt.payload))
			resp, err := ParseResponse(f)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			ack, ok := resp.(Ack)
			if !ok {
				t.Fatalf("expected Ack, got %T", resp)
			}
			if ack.Status != tt.status {
				t.Errorf("status: expected 0x%04X, got 0x%04X", tt.status, ack.Status)
			}
			if ack.HasMAC() != tt.hasMAC {
				t.Errorf("hasMAC: expected %t, got %t", tt.hasMAC, ack.HasMAC())
			}
			if ack.MAC() != tt.mac {
				t.Errorf("mac: expected %s, got %s", tt.mac, ack.MAC())
			}
			if ack.OK() != tt.ok {
				t.Errorf("ok: expected %t, got %t", tt.ok, ack.OK())
			}
		})
	}
}

func TestParseResponse_Calibration(t *testing.T) {
	// Unity gain: gainA = 1.0 (0x3F800000), everything else zero.
	var w fieldWriter
	w.uint16(uint16(CodeResCalibration))
	w.uint16(0x0001)
	w.uint64(0x0123456789ABCDEF)
	w.float32(1.0)
	w.float32(0)
	w.float32(0)
	w.float32(0)

	f := decodeOne(t, w.buf)
	resp, err := ParseResponse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, ok := resp.(ResCalibration)
	if !ok {
		t.Fatalf("expected ResCalibration, got %T", resp)
	}
	if res.MAC() != 0x0123456789ABCDEF {
		t.Errorf("mac mismatch: %s", res.MAC())
	}
	if res.Calibration.GainA != 1.0 {
		t.Errorf("gainA: expected 1.0, got %g", res.Calibration.GainA)
	}
	if res.Calibration.GainB != 0 || res.Calibration.OffTotal != 0 || res.Calibration.OffNoise != 0 {
		t.Errorf("expected zero constants, got %+v", res.Calibration)
	}
}

func TestParseResponse_PowerUse(t *testing.T) {
	var w fieldWriter
	w.uint16(uint16(CodeResPowerUse))
	w.uint16(0x0002)
	w.uint64(0x0123456789ABCDEF)
	w.uint16(58)     // 1s counter
	w.uint16(463)    // 8s counter
	w.uint32(104120) // hour counter
	w.uint16(0)
	w.uint16(0)
	w.uint16(0)

	f := decodeOne(t, w.buf)
	resp, err := ParseResponse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := resp.(ResPowerUse)
	if res.Pulse1s.Count != 58 || res.Pulse1s.Seconds != 1 {
		t.Errorf("pulse1s: %+v", res.Pulse1s)
	}
	if res.Pulse8s.Count != 463 || res.Pulse8s.Seconds != 8 {
		t.Errorf("pulse8s: %+v", res.Pulse8s)
	}
	if res.PulseHour.Count != 104120 || res.PulseHour.Seconds != 3600 {
		t.Errorf("pulseHour: %+v", res.PulseHour)
	}
}

func TestParseResponse_ClockInfo(t *testing.T) {
	var w fieldWriter
	w.uint16(uint16(CodeResClockInfo))
	w.uint16(0x0003)
	w.uint64(0x0123456789ABCDEF)
	w.uint8(11)
	w.uint8(36)
	w.uint8(58)
	w.uint8(6) // Saturday
	w.uint8(1)
	w.uint16(0x457A)

	f := decodeOne(t, w.buf)
	resp, err := ParseResponse(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := resp.(ResClockInfo)
	if res.Hour != 11 || res.Minute != 36 || res.Second != 58 {
		t.Errorf("time: %02d:%02d:%02d", res.Hour, res.Minute, res.Second)
	}
	if res.Weekday() != time.Saturday {
		t.Errorf("weekday: expected Saturday, got %s", res.Weekday())
	}
}

func TestParseResponse_TruncatedPayload(t *testing.T) {
	// A calibration response missing its last constant.
	var w fieldWriter
	w.uint16(uint16(CodeResCalibration))
	w.uint16(0x0001)
	w.uint64(0x0123456789ABCDEF)
	w.float32(1.0)
	w.float32(0)
	w.float32(0)

	f := decodeOne(t, w.buf)
	if _, err := ParseResponse(f); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestParseResponse_TrailingGarbage(t *testing.T) {
	var w fieldWriter
	w.uint16(uint16(CodeResClockInfo))
	w.uint16(0x0003)
	w.uint64(0x0123456789ABCDEF)
	w.uint8(11)
	w.uint8(36)
	w.uint8(58)
	w.uint8(6)
	w.uint8(1)
	w.uint16(0)
	w.uint16(0xBEEF) // extra field the layout does not allow

	f := decodeOne(t, w.buf)
	if _, err := ParseResponse(f); err == nil {
		t.Fatal("expected error for trailing payload chars")
	}
}

func TestParseRequest_RoundTrip(t *testing.T) {
	const mac = MAC(0x0123456789ABCDEF)

	reqs := []Request{
		ReqInitialize{},
		ReqInfo{MAC: mac},
		ReqSwitch{MAC: mac, On: true},
		ReqCalibration{MAC: mac},
		ReqPowerUse{MAC: mac},
		ReqPowerBuffer{MAC: mac, Slot: 42},
		ReqClockInfo{MAC: mac},
		ReqClockSet{MAC: mac, Time: time.Date(2026, 8, 28, 11, 36, 58, 0, time.UTC)},
	}

	for _, req := range reqs {
		t.Run(FormatCode(req.Code()), func(t *testing.T) {
			wire, err := Marshal(req)
			if err != nil {
				t.Fatal(err)
			}
			d := NewDecoder()
			frames, errs := feedBytes(d, wire)
			if len(errs) != 0 || len(frames) != 1 {
				t.Fatalf("decode: frames=%d errs=%v", len(frames), errs)
			}
			parsed, err := ParseRequest(frames[0])
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed != req {
				t.Errorf("round trip mismatch:\nexpected %#v\ngot      %#v", req, parsed)
			}
		})
	}
}

func TestLogDate_RoundTrip(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 8, 28, 11, 36, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC),
	}

	for _, want := range times {
		d := NewLogDate(want)
		if !d.Valid() {
			t.Errorf("%s: stamp should be valid", want)
			continue
		}
		got, ok := d.Time()
		if !ok {
			t.Errorf("%s: Time() not ok", want)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("round trip mismatch: expected %s, got %s", want, got)
		}
	}
}

func TestLogDate_Invalid(t *testing.T) {
	// Unwritten flash reads all ones.
	d := LogDate{Year: 0xFF, Month: 0xFF, Minutes: 0xFFFF}
	if d.Valid() {
		t.Error("all-FF stamp must be invalid")
	}
	if _, ok := d.Time(); ok {
		t.Error("Time() must report not ok for invalid stamp")
	}
}

func TestSlotAddressing(t *testing.T) {
	tests := []struct {
		slot uint32
		addr uint32
	}{
		{0, 278528},
		{1, 278560},
		{100, 281728},
	}
	for _, tt := range tests {
		if got := slotToAddr(tt.slot); got != tt.addr {
			t.Errorf("slotToAddr(%d): expected %d, got %d", tt.slot, tt.addr, got)
		}
		if got := addrToSlot(tt.addr); got != tt.slot {
			t.Errorf("addrToSlot(%d): expected %d, got %d", tt.addr, tt.slot, got)
		}
	}
}

func TestWireWeekday(t *testing.T) {
	if wireWeekday(time.Monday) != 1 {
		t.Error("Monday should map to 1")
	}
	if wireWeekday(time.Sunday) != 7 {
		t.Error("Sunday should map to 7")
	}
}

func TestParseMAC(t *testing.T) {
	tests := []struct {
		in      string
		want    MAC
		wantErr bool
	}{
		{"0123456789ABCDEF", 0x0123456789ABCDEF, false},
		{"01:23:45:67:89:AB:CD:EF", 0x0123456789ABCDEF, false},
		{"01-23-45-67-89-AB-CD-EF", 0x0123456789ABCDEF, false},
		{" 0123456789abcdef ", 0x0123456789ABCDEF, false},
		{"0123", 0, true},
		{"0123456789ABCDEG", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMAC(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMAC(%q): err=%v, wantErr=%t", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMAC(%q): expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
