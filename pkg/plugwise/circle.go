// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"context"
	"time"
)

// Circle is a handle to one relay device on the mesh. The handle caches
// the device's factory calibration, fetched once when the handle is
// created, so power readings convert without extra round trips.
//
// A Circle is safe for concurrent use; all methods go through the
// session's correlation table.
type Circle struct {
	session *Session
	mac     MAC
	cal     Calibration
}

// newCircle fetches the device calibration and builds the handle.
func newCircle(ctx context.Context, s *Session, mac MAC) (*Circle, error) {
	resp, err := s.Request(ctx, ReqCalibration{MAC: mac}, CodeResCalibration)
	if err != nil {
		return nil, err
	}
	res, ok := resp.(ResCalibration)
	if !ok {
		return nil, &ProtocolError{Code: resp.Code(), Reason: "expected calibration response"}
	}
	return &Circle{session: s, mac: mac, cal: res.Calibration}, nil
}

// MAC returns the device address this handle talks to.
func (c *Circle) MAC() MAC { return c.mac }

// Calibration returns the cached factory constants.
func (c *Circle) Calibration() Calibration { return c.cal }

// SwitchOn closes the relay. The call blocks until the device acks.
func (c *Circle) SwitchOn(ctx context.Context) error {
	return c.session.requestAck(ctx, ReqSwitch{MAC: c.mac, On: true})
}

// SwitchOff opens the relay.
func (c *Circle) SwitchOff(ctx context.Context) error {
	return c.session.requestAck(ctx, ReqSwitch{MAC: c.mac, On: false})
}

// Info fetches the device status snapshot.
func (c *Circle) Info(ctx context.Context) (ResInfo, error) {
	resp, err := c.session.Request(ctx, ReqInfo{MAC: c.mac}, CodeResInfo)
	if err != nil {
		return ResInfo{}, err
	}
	res, ok := resp.(ResInfo)
	if !ok {
		return ResInfo{}, &ProtocolError{Code: resp.Code(), Reason: "expected info response"}
	}
	return res, nil
}

// RelayOn fetches the current relay state.
func (c *Circle) RelayOn(ctx context.Context) (bool, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return false, err
	}
	return info.RelayOn, nil
}

// PowerUsage is the live power draw, converted through the handle's
// calibration.
type PowerUsage struct {
	// Watts1s and Watts8s are instantaneous draw over the last one and
	// eight seconds. The eight-second window is the steadier reading.
	Watts1s float64
	Watts8s float64

	// KWhHour is the energy consumed in the current hour so far.
	KWhHour float64

	// Saturated marks a load beyond the metering range; the wattage
	// fields then read zero rather than garbage.
	Saturated bool
}

// Power fetches the live pulse counters and converts them to calibrated
// units.
func (c *Circle) Power(ctx context.Context) (PowerUsage, error) {
	resp, err := c.session.Request(ctx, ReqPowerUse{MAC: c.mac}, CodeResPowerUse)
	if err != nil {
		return PowerUsage{}, err
	}
	res, ok := resp.(ResPowerUse)
	if !ok {
		return PowerUsage{}, &ProtocolError{Code: resp.Code(), Reason: "expected power use response"}
	}
	return PowerUsage{
		Watts1s:   res.Pulse1s.Watts(c.cal),
		Watts8s:   res.Pulse8s.Watts(c.cal),
		KWhHour:   res.PulseHour.KWh(c.cal),
		Saturated: res.Pulse1s.Saturated() || res.Pulse8s.Saturated(),
	}, nil
}

// Clock fetches the device's time of day.
func (c *Circle) Clock(ctx context.Context) (ResClockInfo, error) {
	resp, err := c.session.Request(ctx, ReqClockInfo{MAC: c.mac}, CodeResClockInfo)
	if err != nil {
		return ResClockInfo{}, err
	}
	res, ok := resp.(ResClockInfo)
	if !ok {
		return ResClockInfo{}, &ProtocolError{Code: resp.Code(), Reason: "expected clock info response"}
	}
	return res, nil
}

// SetClock sets the device clock to the given moment, in UTC at second
// resolution.
func (c *Circle) SetClock(ctx context.Context, t time.Time) error {
	return c.session.requestAck(ctx, ReqClockSet{MAC: c.mac, Time: t})
}

// PowerBuffer fetches one log slot of up to four hourly samples,
// converted through the handle's calibration. Unwritten positions are
// omitted.
func (c *Circle) PowerBuffer(ctx context.Context, slot uint32) ([]PowerSample, error) {
	resp, err := c.session.Request(ctx, ReqPowerBuffer{MAC: c.mac, Slot: slot}, CodeResPowerBuffer)
	if err != nil {
		return nil, err
	}
	res, ok := resp.(ResPowerBuffer)
	if !ok {
		return nil, &ProtocolError{Code: resp.Code(), Reason: "expected power buffer response"}
	}

	samples := make([]PowerSample, 0, len(res.Samples))
	for _, e := range res.Samples {
		if e.Empty() {
			continue
		}
		stamp, _ := e.Stamp.Time()
		p := Pulses{Count: e.Pulses, Seconds: 3600}
		samples = append(samples, PowerSample{
			Time:   stamp,
			Pulses: e.Pulses,
			KWh:    p.KWh(c.cal),
		})
	}
	return samples, nil
}

// History walks the device's hourly consumption log from the given slot
// through the most recent one. A negative fromSlot starts at the oldest
// retained slot.
func (c *Circle) History(ctx context.Context, fromSlot int64) *HistoryIterator {
	return newHistoryIterator(ctx, c, fromSlot)
}
