// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of response anomalies
type AnomalyType int

const (
	AnomalyInvalidClock AnomalyType = iota
	AnomalyInvalidStamp
	AnomalyInvalidCalibration
	AnomalySaturatedCounter
	AnomalyUnknownLineFreq
	AnomalyAckFailure
)

// ValidationError represents a response validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateResponse checks a parsed response for values a healthy device
// never reports. Responses pass structural checks before they get here;
// anomalies flagged by this pass point at misbehaving hardware or clocks
// that were never set.
// Returns a slice of validation errors (empty if the response is clean)
func ValidateResponse(resp Response) []ValidationError {
	errors := []ValidationError{}

	switch r := resp.(type) {
	case Ack:
		errors = append(errors, validateAck(r)...)
	case ResInfo:
		errors = append(errors, validateInfo(r)...)
	case ResCalibration:
		errors = append(errors, validateCalibration(r)...)
	case ResPowerUse:
		errors = append(errors, validatePowerUse(r)...)
	case ResClockInfo:
		errors = append(errors, validateClockInfo(r)...)
	}

	return errors
}

func validateAck(a Ack) []ValidationError {
	errors := []ValidationError{}

	if !a.OK() {
		errors = append(errors, ValidationError{
			Type:    AnomalyAckFailure,
			Message: fmt.Sprintf("Ack reports failure status=0x%04X", a.Status),
			Details: map[string]interface{}{"status": a.Status},
		})
	}

	return errors
}

func validateInfo(r ResInfo) []ValidationError {
	errors := []ValidationError{}

	if !r.Stamp.Valid() {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidStamp,
			Message: fmt.Sprintf("Invalid clock stamp (year=%d month=%d minutes=%d)", r.Stamp.Year, r.Stamp.Month, r.Stamp.Minutes),
			Details: map[string]interface{}{"year": r.Stamp.Year, "month": r.Stamp.Month, "minutes": r.Stamp.Minutes},
		})
	}

	if r.LineFreqHz == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownLineFreq,
			Message: "Unrecognized line frequency marker",
			Details: map[string]interface{}{"freq_hz": r.LineFreqHz},
		})
	}

	return errors
}

func validateCalibration(r ResCalibration) []ValidationError {
	errors := []ValidationError{}
	c := r.Calibration

	gains := []struct {
		name  string
		value float32
	}{
		{"gain_a", c.GainA},
		{"gain_b", c.GainB},
		{"off_total", c.OffTotal},
		{"off_noise", c.OffNoise},
	}
	for _, g := range gains {
		name, v := g.name, g.value
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidCalibration,
				Message: fmt.Sprintf("Calibration constant %s is not finite (%v)", name, v),
				Details: map[string]interface{}{"constant": name, "value": f},
			})
		}
	}

	// A unity-gain device reports gain_a near 1.0; an order of magnitude
	// off means the constants were read from blank flash.
	if a := float64(c.GainA); !math.IsNaN(a) && (a < 0.1 || a > 10.0) {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidCalibration,
			Message: fmt.Sprintf("gain_a out of range (%g, valid: 0.1-10)", c.GainA),
			Details: map[string]interface{}{"gain_a": a, "min": 0.1, "max": 10.0},
		})
	}

	return errors
}

func validatePowerUse(r ResPowerUse) []ValidationError {
	errors := []ValidationError{}

	counters := []struct {
		name   string
		pulses Pulses
	}{
		{"pulse_1s", r.Pulse1s},
		{"pulse_8s", r.Pulse8s},
	}
	for _, c := range counters {
		name, p := c.name, c.pulses
		if p.Saturated() {
			errors = append(errors, ValidationError{
				Type:    AnomalySaturatedCounter,
				Message: fmt.Sprintf("Pulse counter %s saturated (load beyond metering range)", name),
				Details: map[string]interface{}{"counter": name, "count": p.Count},
			})
		}
	}

	return errors
}

func validateClockInfo(r ResClockInfo) []ValidationError {
	errors := []ValidationError{}

	if r.Hour > 23 || r.Minute > 59 || r.Second > 59 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidClock,
			Message: fmt.Sprintf("Time of day out of range (%02d:%02d:%02d)", r.Hour, r.Minute, r.Second),
			Details: map[string]interface{}{"hour": r.Hour, "minute": r.Minute, "second": r.Second},
		})
	}

	if r.DayOfWeek < 1 || r.DayOfWeek > 7 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidClock,
			Message: fmt.Sprintf("Invalid day of week=%d (valid 1-7)", r.DayOfWeek),
			Details: map[string]interface{}{"day_of_week": r.DayOfWeek},
		})
	}

	return errors
}
