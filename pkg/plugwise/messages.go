// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"time"
)

// LogDate is the Circle's on-wire calendar stamp: years since 2000, the
// month, and minutes elapsed within that month. Empty log slots read
// all-FF, which decodes as an invalid stamp.
type LogDate struct {
	Year    uint8
	Month   uint8
	Minutes uint16
}

// NewLogDate converts a wall-clock time to a device stamp, in UTC, at
// minute resolution.
func NewLogDate(t time.Time) LogDate {
	utc := t.UTC()
	return LogDate{
		Year:    uint8(utc.Year() - 2000),
		Month:   uint8(utc.Month()),
		Minutes: uint16((utc.Day()-1)*24*60 + utc.Hour()*60 + utc.Minute()),
	}
}

// Valid reports whether the stamp denotes a representable moment. The
// all-FF fill of unwritten flash is the usual invalid value.
func (d LogDate) Valid() bool {
	day := 1 + int(d.Minutes)/(24*60)
	return d.Month >= 1 && d.Month <= 12 && day <= 31
}

// Time converts the stamp back to wall-clock UTC. ok is false for invalid
// stamps.
func (d LogDate) Time() (t time.Time, ok bool) {
	if !d.Valid() {
		return time.Time{}, false
	}
	minute := int(d.Minutes) % 60
	hour := (int(d.Minutes) / 60) % 24
	day := 1 + int(d.Minutes)/(24*60)
	return time.Date(2000+int(d.Year), time.Month(d.Month), day, hour, minute, 0, 0, time.UTC), true
}

// Log slot addressing. The wire carries raw flash addresses; the API deals
// in slot numbers.
func slotToAddr(slot uint32) uint32 { return slot*logBytesPerPos + logAddrOffset }
func addrToSlot(addr uint32) uint32 { return (addr - logAddrOffset) / logBytesPerPos }

// noLogAddr is sent in a clock-set when the log pointer is left alone.
const noLogAddr = 0xFFFFFFFF

// ---------------------------------------------------------------------------
// Requests

// ReqInitialize asks the stick for its network status. It is the only
// request without a target MAC.
type ReqInitialize struct{}

func (ReqInitialize) Code() Code     { return CodeReqInitialize }
func (ReqInitialize) fields() []byte { return nil }

// ReqInfo queries device status: clock stamp, relay state, log pointer,
// hardware and firmware identification.
type ReqInfo struct {
	MAC MAC
}

func (r ReqInfo) Code() Code { return CodeReqInfo }
func (r ReqInfo) fields() []byte {
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	return w.buf
}

// ReqSwitch sets the relay. The device confirms with an ack carrying its
// MAC.
type ReqSwitch struct {
	MAC MAC
	On  bool
}

func (r ReqSwitch) Code() Code { return CodeReqSwitch }
func (r ReqSwitch) fields() []byte {
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	if r.On {
		w.uint8(1)
	} else {
		w.uint8(0)
	}
	return w.buf
}

// ReqCalibration fetches the device's factory calibration constants.
type ReqCalibration struct {
	MAC MAC
}

func (r ReqCalibration) Code() Code { return CodeReqCalibration }
func (r ReqCalibration) fields() []byte {
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	return w.buf
}

// ReqPowerUse fetches the live pulse counters.
type ReqPowerUse struct {
	MAC MAC
}

func (r ReqPowerUse) Code() Code { return CodeReqPowerUse }
func (r ReqPowerUse) fields() []byte {
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	return w.buf
}

// ReqPowerBuffer fetches one log slot (four hourly samples).
type ReqPowerBuffer struct {
	MAC  MAC
	Slot uint32
}

func (r ReqPowerBuffer) Code() Code { return CodeReqPowerBuffer }
func (r ReqPowerBuffer) fields() []byte {
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	w.uint32(slotToAddr(r.Slot))
	return w.buf
}

// ReqClockInfo fetches the device's time of day.
type ReqClockInfo struct {
	MAC MAC
}

func (r ReqClockInfo) Code() Code { return CodeReqClockInfo }
func (r ReqClockInfo) fields() []byte {
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	return w.buf
}

// ReqClockSet sets the device clock. Time is taken in UTC at second
// resolution; the log pointer is left unchanged. The device confirms with
// an ack carrying its MAC.
type ReqClockSet struct {
	MAC  MAC
	Time time.Time
}

func (r ReqClockSet) Code() Code { return CodeReqClockSet }
func (r ReqClockSet) fields() []byte {
	utc := r.Time.UTC()
	var w fieldWriter
	w.uint64(uint64(r.MAC))
	w.logDate(NewLogDate(utc))
	w.uint32(noLogAddr)
	w.uint8(uint8(utc.Hour()))
	w.uint8(uint8(utc.Minute()))
	w.uint8(uint8(utc.Second()))
	w.uint8(wireWeekday(utc.Weekday()))
	return w.buf
}

// wireWeekday maps Go's Sunday-based weekday to the device's Monday=1
// through Sunday=7 convention.
func wireWeekday(d time.Weekday) uint8 {
	if d == time.Sunday {
		return 7
	}
	return uint8(d)
}

// ---------------------------------------------------------------------------
// Responses

// Response is a typed inbound message. Seq is the counter the stick
// assigns; MAC identifies the responding device (zero on a stick-local
// ack without one).
type Response interface {
	Code() Code
	Seq() uint16
	MAC() MAC
}

type respHeader struct {
	seq uint16
	mac MAC
}

func (h respHeader) Seq() uint16 { return h.seq }
func (h respHeader) MAC() MAC    { return h.mac }

// Ack confirms a command. Command acks carry the executing device's MAC;
// stick-level acks may omit it.
type Ack struct {
	respHeader
	Status uint16
	hasMAC bool
}

func (Ack) Code() Code     { return CodeAck }
func (a Ack) HasMAC() bool { return a.hasMAC }

// OK reports whether the status indicates success. Firmware before the
// 2010 generation acked everything with status zero.
func (a Ack) OK() bool {
	return a.Status == 0 || a.Status == AckSuccess
}

// ResInitialize is the stick's network status.
type ResInitialize struct {
	respHeader
	Online    bool
	NetworkID uint64
	ShortID   uint16
}

func (ResInitialize) Code() Code { return CodeResInitialize }

// ResInfo is the device status snapshot.
type ResInfo struct {
	respHeader
	Stamp           LogDate
	LastLogSlot     uint32
	RelayOn         bool
	LineFreqHz      uint8 // 50, 60, or 0 when unrecognized
	HardwareVersion string
	FirmwareTime    time.Time
}

func (ResInfo) Code() Code { return CodeResInfo }

// ResCalibration carries the factory calibration constants.
type ResCalibration struct {
	respHeader
	Calibration Calibration
}

func (ResCalibration) Code() Code { return CodeResCalibration }

// ResPowerUse carries the live pulse counters over one second, eight
// seconds, and the hour so far.
type ResPowerUse struct {
	respHeader
	Pulse1s   Pulses
	Pulse8s   Pulses
	PulseHour Pulses
}

func (ResPowerUse) Code() Code { return CodeResPowerUse }

// LogEntry is one hourly sample inside a log slot.
type LogEntry struct {
	Stamp  LogDate
	Pulses uint32
}

// Empty reports whether the slot position has not been written yet.
func (e LogEntry) Empty() bool {
	return e.Pulses == 0xFFFFFFFF || !e.Stamp.Valid()
}

// ResPowerBuffer carries one log slot of four hourly samples.
type ResPowerBuffer struct {
	respHeader
	Samples [logSamplesPerSlot]LogEntry
	Slot    uint32
}

func (ResPowerBuffer) Code() Code { return CodeResPowerBuffer }

// ResClockInfo is the device's time of day.
type ResClockInfo struct {
	respHeader
	Hour      uint8
	Minute    uint8
	Second    uint8
	DayOfWeek uint8 // Monday=1 .. Sunday=7
}

func (ResClockInfo) Code() Code { return CodeResClockInfo }

// Weekday converts the wire day-of-week to Go's convention.
func (c ResClockInfo) Weekday() time.Weekday {
	if c.DayOfWeek == 7 {
		return time.Sunday
	}
	return time.Weekday(c.DayOfWeek)
}

// ParseResponse interprets a decoded frame as a typed response. The frame
// is structurally valid (checksum verified); a parse failure here means
// the payload layout does not match the code, which callers surface as a
// ProtocolError.
func ParseResponse(f *Frame) (Response, error) {
	r := newFieldReader(f.Data())
	seq := r.uint16()

	if f.code == CodeAck {
		ack := Ack{respHeader: respHeader{seq: seq}}
		ack.Status = r.uint16()
		if r.remaining() > 0 {
			ack.mac = MAC(r.uint64())
			ack.hasMAC = true
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return ack, nil
	}

	hdr := respHeader{seq: seq, mac: MAC(r.uint64())}

	switch f.code {
	case CodeResInitialize:
		r.uint8() // undocumented
		online := r.uint8()
		res := ResInitialize{
			respHeader: hdr,
			Online:     online != 0,
			NetworkID:  r.uint64(),
			ShortID:    r.uint16(),
		}
		r.uint8() // undocumented
		if err := r.done(); err != nil {
			return nil, err
		}
		return res, nil

	case CodeResInfo:
		res := ResInfo{respHeader: hdr}
		res.Stamp = r.logDate()
		res.LastLogSlot = addrToSlot(r.uint32())
		res.RelayOn = r.uint8() != 0
		res.LineFreqHz = lineFreq(r.uint8())
		res.HardwareVersion = r.string(12)
		res.FirmwareTime = time.Unix(int64(r.uint32()), 0).UTC()
		r.uint8() // undocumented
		if err := r.done(); err != nil {
			return nil, err
		}
		return res, nil

	case CodeResCalibration:
		res := ResCalibration{respHeader: hdr}
		res.Calibration = Calibration{
			GainA:    r.float32(),
			GainB:    r.float32(),
			OffTotal: r.float32(),
			OffNoise: r.float32(),
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return res, nil

	case CodeResPowerUse:
		res := ResPowerUse{respHeader: hdr}
		res.Pulse1s = Pulses{Count: uint32(r.uint16()), Seconds: 1}
		res.Pulse8s = Pulses{Count: uint32(r.uint16()), Seconds: 8}
		res.PulseHour = Pulses{Count: r.uint32(), Seconds: 3600}
		r.uint16() // undocumented
		r.uint16() // undocumented
		r.uint16() // undocumented
		if err := r.done(); err != nil {
			return nil, err
		}
		return res, nil

	case CodeResPowerBuffer:
		res := ResPowerBuffer{respHeader: hdr}
		for i := range res.Samples {
			res.Samples[i].Stamp = r.logDate()
			res.Samples[i].Pulses = r.uint32()
		}
		res.Slot = addrToSlot(r.uint32())
		if err := r.done(); err != nil {
			return nil, err
		}
		return res, nil

	case CodeResClockInfo:
		res := ResClockInfo{respHeader: hdr}
		res.Hour = r.uint8()
		res.Minute = r.uint8()
		res.Second = r.uint8()
		res.DayOfWeek = r.uint8()
		r.uint8()  // undocumented
		r.uint16() // undocumented
		if err := r.done(); err != nil {
			return nil, err
		}
		return res, nil
	}

	return nil, &FrameError{Reason: "not a response code: " + FormatCode(f.code)}
}

// lineFreq maps the firmware's frequency marker to Hertz.
func lineFreq(marker uint8) uint8 {
	switch marker {
	case 133:
		return 50
	case 197:
		return 60
	}
	return 0
}

// ParseRequest interprets a decoded frame as a typed request. Used by the
// simulator and the frame formatter; the engine itself only sends
// requests.
func ParseRequest(f *Frame) (Request, error) {
	r := newFieldReader(f.Data())

	if f.code == CodeReqInitialize {
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqInitialize{}, nil
	}

	mac := MAC(r.uint64())

	switch f.code {
	case CodeReqInfo:
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqInfo{MAC: mac}, nil

	case CodeReqSwitch:
		on := r.uint8()
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqSwitch{MAC: mac, On: on != 0}, nil

	case CodeReqCalibration:
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqCalibration{MAC: mac}, nil

	case CodeReqPowerUse:
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqPowerUse{MAC: mac}, nil

	case CodeReqPowerBuffer:
		addr := r.uint32()
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqPowerBuffer{MAC: mac, Slot: addrToSlot(addr)}, nil

	case CodeReqClockInfo:
		if err := r.done(); err != nil {
			return nil, err
		}
		return ReqClockInfo{MAC: mac}, nil

	case CodeReqClockSet:
		stamp := r.logDate()
		r.uint32() // log pointer, always left unchanged by this engine
		hour := r.uint8()
		minute := r.uint8()
		second := r.uint8()
		r.uint8() // weekday, derivable from the date
		if err := r.done(); err != nil {
			return nil, err
		}
		day, _ := stamp.Time()
		t := time.Date(day.Year(), day.Month(), day.Day(), int(hour), int(minute), int(second), 0, time.UTC)
		return ReqClockSet{MAC: mac, Time: t}, nil
	}

	return nil, &FrameError{Reason: "not a request code: " + FormatCode(f.code)}
}
