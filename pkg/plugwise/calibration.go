// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

// Calibration holds a device's factory-set conversion constants. They are
// fetched once per device handle and never change for the life of the
// session.
type Calibration struct {
	GainA    float32
	GainB    float32
	OffTotal float32
	OffNoise float32
}

// pulsesPerKW is the meter constant shared by all Circle hardware.
const pulsesPerKW = 468.9385193

// Pulses is a raw pulse counter collected over a known span. The firmware
// reports saturated counters as all-ones.
type Pulses struct {
	Count   uint32
	Seconds uint32
}

// Saturated reports whether the counter overflowed its 16-bit wire field.
func (p Pulses) Saturated() bool {
	return p.Count == 0xFFFF
}

// perSecond applies the calibration polynomial to the normalized pulse
// rate. Zero and saturated counters convert to exactly zero; this matches
// the vendor algorithm bit for bit, including the quirk that a legitimate
// reading of 65535 hourly pulses is indistinguishable from saturation.
func (p Pulses) perSecond(cal Calibration) float64 {
	if p.Count == 0 || p.Count == 0xFFFF {
		return 0
	}
	corrected := float64(p.Count)/float64(p.Seconds) + float64(cal.OffNoise)
	return corrected*corrected*float64(cal.GainB) +
		corrected*float64(cal.GainA) +
		float64(cal.OffTotal)
}

// kw converts the calibrated pulse rate to kilowatts.
func (p Pulses) kw(cal Calibration) float64 {
	return p.perSecond(cal) / pulsesPerKW
}

// Watts converts the counter to instantaneous power draw. The conversion
// is a pure function of its inputs.
func (p Pulses) Watts(cal Calibration) float64 {
	return p.kw(cal) * 1000
}

// KWh converts the counter to the energy accumulated over its span.
func (p Pulses) KWh(cal Calibration) float64 {
	return p.kw(cal) * (float64(p.Seconds) / 3600)
}
