// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// SimDevice is the scripted state of one simulated relay device.
type SimDevice struct {
	Calibration Calibration
	RelayOn     bool
	Clock       time.Time
	LineFreqHz  uint8
	Hardware    string // 12 hex chars

	Pulse1s   uint16
	Pulse8s   uint16
	PulseHour uint32

	// Log holds hourly samples in write order; four consecutive entries
	// share a slot.
	Log []LogEntry
}

// Simulator emulates a coordinator stick and its mesh behind a plain byte
// stream, so sessions and handles can be exercised without hardware. It
// speaks the real wire format: requests written to it are decoded by the
// same state machine the session uses, and responses come back framed and
// checksummed.
//
// Requests addressed to a MAC the simulator does not know go unanswered,
// which is exactly how a real mesh behaves.
type Simulator struct {
	StickMAC  MAC
	Online    bool
	NetworkID uint64
	ShortID   uint16

	mu      sync.Mutex
	cond    *sync.Cond
	devices map[MAC]*SimDevice
	dec     *Decoder
	out     bytes.Buffer
	seq     uint16
	drop    int
	closed  bool
}

// NewSimulator creates a simulator with an online coordinator and no
// devices.
func NewSimulator() *Simulator {
	s := &Simulator{
		StickMAC:  0x000D6F0000000001,
		Online:    true,
		NetworkID: 0x000D6F0000FFFFFF,
		ShortID:   0x1234,
		devices:   make(map[MAC]*SimDevice),
		dec:       NewDecoder(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// AddDevice attaches a device to the simulated mesh. Zero-value fields get
// workable defaults: unity calibration, 50 Hz mains, a synced clock.
func (s *Simulator) AddDevice(mac MAC, dev *SimDevice) {
	if dev.LineFreqHz == 0 {
		dev.LineFreqHz = 50
	}
	if dev.Hardware == "" {
		dev.Hardware = "000653907614"
	}
	if dev.Clock.IsZero() {
		dev.Clock = time.Now().UTC()
	}
	s.mu.Lock()
	s.devices[mac] = dev
	s.mu.Unlock()
}

// Device returns the scripted state for direct inspection and mutation in
// tests.
func (s *Simulator) Device(mac MAC) *SimDevice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices[mac]
}

// DropRequests makes the simulator swallow the next n well-formed requests
// without answering, to provoke timeouts and retries.
func (s *Simulator) DropRequests(n int) {
	s.mu.Lock()
	s.drop += n
	s.mu.Unlock()
}

// Read blocks until response bytes are available or the stream closes.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.out.Len() == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.out.Len() == 0 {
		return 0, io.EOF
	}
	return s.out.Read(p)
}

// Write feeds request bytes through the frame decoder and answers each
// completed request.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	for _, b := range p {
		frame, err := s.dec.DecodeByte(b)
		if err != nil || frame == nil {
			continue
		}
		if s.drop > 0 {
			s.drop--
			continue
		}
		s.handle(frame)
	}
	return len(p), nil
}

// Close wakes blocked readers with EOF.
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

// Inject places raw bytes on the response stream, bypassing the request
// handling. Tests use it for unsolicited traffic and corrupted frames.
func (s *Simulator) Inject(raw []byte) {
	s.mu.Lock()
	s.out.Write(raw)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// respond frames and queues one response. Called with mu held.
func (s *Simulator) respond(code Code, build func(w *fieldWriter)) {
	s.seq++
	var w fieldWriter
	w.uint16(uint16(code))
	w.uint16(s.seq)
	if build != nil {
		build(&w)
	}
	s.out.Write(frameBytes(w.buf))
	s.cond.Broadcast()
}

func (s *Simulator) ack(status uint16, mac MAC) {
	s.respond(CodeAck, func(w *fieldWriter) {
		w.uint16(status)
		if mac != 0 {
			w.uint64(uint64(mac))
		}
	})
}

// handle answers one decoded request. Called with mu held.
func (s *Simulator) handle(frame *Frame) {
	req, err := ParseRequest(frame)
	if err != nil {
		s.ack(AckError, 0)
		return
	}

	if _, ok := req.(ReqInitialize); ok {
		s.respond(CodeResInitialize, func(w *fieldWriter) {
			w.uint64(uint64(s.StickMAC))
			w.uint8(0)
			if s.Online {
				w.uint8(1)
			} else {
				w.uint8(0)
			}
			w.uint64(s.NetworkID)
			w.uint16(s.ShortID)
			w.uint8(0)
		})
		return
	}

	mac := requestTarget(req)
	dev, ok := s.devices[mac]
	if !ok {
		// Nobody home at that address; the request dies in the mesh.
		return
	}

	switch r := req.(type) {
	case ReqSwitch:
		dev.RelayOn = r.On
		s.ack(AckSuccess, mac)

	case ReqClockSet:
		dev.Clock = r.Time.UTC()
		s.ack(AckSuccess, mac)

	case ReqInfo:
		s.respond(CodeResInfo, func(w *fieldWriter) {
			w.uint64(uint64(mac))
			w.logDate(NewLogDate(dev.Clock))
			w.uint32(slotToAddr(dev.lastLogSlot()))
			if dev.RelayOn {
				w.uint8(1)
			} else {
				w.uint8(0)
			}
			w.uint8(freqMarker(dev.LineFreqHz))
			w.text(dev.Hardware)
			w.uint32(uint32(dev.Clock.Unix()))
			w.uint8(0)
		})

	case ReqCalibration:
		s.respond(CodeResCalibration, func(w *fieldWriter) {
			w.uint64(uint64(mac))
			w.float32(dev.Calibration.GainA)
			w.float32(dev.Calibration.GainB)
			w.float32(dev.Calibration.OffTotal)
			w.float32(dev.Calibration.OffNoise)
		})

	case ReqPowerUse:
		s.respond(CodeResPowerUse, func(w *fieldWriter) {
			w.uint64(uint64(mac))
			w.uint16(dev.Pulse1s)
			w.uint16(dev.Pulse8s)
			w.uint32(dev.PulseHour)
			w.uint16(0)
			w.uint16(0)
			w.uint16(0)
		})

	case ReqPowerBuffer:
		s.respond(CodeResPowerBuffer, func(w *fieldWriter) {
			w.uint64(uint64(mac))
			for i := 0; i < logSamplesPerSlot; i++ {
				idx := int(r.Slot)*logSamplesPerSlot + i
				if idx < len(dev.Log) {
					w.logDate(dev.Log[idx].Stamp)
					w.uint32(dev.Log[idx].Pulses)
				} else {
					// Unwritten flash reads all ones.
					w.logDate(LogDate{Year: 0xFF, Month: 0xFF, Minutes: 0xFFFF})
					w.uint32(0xFFFFFFFF)
				}
			}
			w.uint32(slotToAddr(r.Slot))
		})

	case ReqClockInfo:
		clock := dev.Clock.UTC()
		s.respond(CodeResClockInfo, func(w *fieldWriter) {
			w.uint64(uint64(mac))
			w.uint8(uint8(clock.Hour()))
			w.uint8(uint8(clock.Minute()))
			w.uint8(uint8(clock.Second()))
			w.uint8(wireWeekday(clock.Weekday()))
			w.uint8(0)
			w.uint16(0)
		})
	}
}

// lastLogSlot is the slot the device is currently writing.
func (d *SimDevice) lastLogSlot() uint32 {
	if len(d.Log) == 0 {
		return 0
	}
	return uint32((len(d.Log) - 1) / logSamplesPerSlot)
}

// freqMarker is the inverse of the firmware's line frequency mapping.
func freqMarker(hz uint8) uint8 {
	if hz == 60 {
		return 197
	}
	return 133
}
