// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"fmt"
	"strings"
)

var codeNames = map[Code]string{
	CodeAck:            "Ack",
	CodeReqInitialize:  "ReqInitialize",
	CodeResInitialize:  "ResInitialize",
	CodeReqPowerUse:    "ReqPowerUse",
	CodeResPowerUse:    "ResPowerUse",
	CodeReqClockSet:    "ReqClockSet",
	CodeReqSwitch:      "ReqSwitch",
	CodeReqInfo:        "ReqInfo",
	CodeResInfo:        "ResInfo",
	CodeReqCalibration: "ReqCalibration",
	CodeResCalibration: "ResCalibration",
	CodeReqClockInfo:   "ReqClockInfo",
	CodeResClockInfo:   "ResClockInfo",
	CodeReqPowerBuffer: "ReqPowerBuffer",
	CodeResPowerBuffer: "ResPowerBuffer",
}

// FormatCode renders a message code as its protocol name, falling back to
// hex for codes this engine does not speak.
func FormatCode(c Code) string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", uint16(c))
}

// FormatFrame renders a decoded frame as one human-readable line, used by
// the frame dump tooling. Responses and requests are both recognized;
// anything else prints as code plus raw payload.
func FormatFrame(f *Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s", FormatCode(f.Code()))

	if resp, err := ParseResponse(f); err == nil {
		fmt.Fprintf(&b, " seq=%04X", resp.Seq())
		if resp.MAC() != 0 {
			fmt.Fprintf(&b, " mac=%s", resp.MAC())
		}
		describeResponse(&b, resp)
		return b.String()
	}

	if req, err := ParseRequest(f); err == nil {
		if mac := requestTarget(req); mac != 0 {
			fmt.Fprintf(&b, " mac=%s", mac)
		}
		describeRequest(&b, req)
		return b.String()
	}

	fmt.Fprintf(&b, " payload=%s", f.Data())
	return b.String()
}

func describeResponse(b *strings.Builder, resp Response) {
	switch r := resp.(type) {
	case Ack:
		fmt.Fprintf(b, " status=0x%04X ok=%t", r.Status, r.OK())
	case ResInitialize:
		fmt.Fprintf(b, " online=%t network=%016X short=%04X", r.Online, r.NetworkID, r.ShortID)
	case ResInfo:
		fmt.Fprintf(b, " relay=%t slot=%d freq=%dHz hw=%s", r.RelayOn, r.LastLogSlot, r.LineFreqHz, r.HardwareVersion)
	case ResCalibration:
		c := r.Calibration
		fmt.Fprintf(b, " gainA=%g gainB=%g offTotal=%g offNoise=%g", c.GainA, c.GainB, c.OffTotal, c.OffNoise)
	case ResPowerUse:
		fmt.Fprintf(b, " pulses1s=%d pulses8s=%d pulsesHour=%d", r.Pulse1s.Count, r.Pulse8s.Count, r.PulseHour.Count)
	case ResPowerBuffer:
		fmt.Fprintf(b, " slot=%d", r.Slot)
		for i, e := range r.Samples {
			if e.Empty() {
				continue
			}
			stamp, _ := e.Stamp.Time()
			fmt.Fprintf(b, " [%d]=%s:%d", i, stamp.Format("2006-01-02T15:04"), e.Pulses)
		}
	case ResClockInfo:
		fmt.Fprintf(b, " time=%02d:%02d:%02d dow=%d", r.Hour, r.Minute, r.Second, r.DayOfWeek)
	}
}

func describeRequest(b *strings.Builder, req Request) {
	switch r := req.(type) {
	case ReqSwitch:
		fmt.Fprintf(b, " on=%t", r.On)
	case ReqPowerBuffer:
		fmt.Fprintf(b, " slot=%d", r.Slot)
	case ReqClockSet:
		fmt.Fprintf(b, " time=%s", r.Time.UTC().Format("2006-01-02T15:04:05"))
	}
}
