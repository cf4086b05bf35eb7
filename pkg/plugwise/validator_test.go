// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"math"
	"testing"
	"time"
)

func hasAnomaly(errs []ValidationError, want AnomalyType) bool {
	for _, e := range errs {
		if e.Type == want {
			return true
		}
	}
	return false
}

func TestValidate_CleanResponses(t *testing.T) {
	now := NewLogDate(time.Date(2026, 8, 28, 11, 36, 0, 0, time.UTC))

	responses := []Response{
		Ack{Status: AckSuccess},
		Ack{Status: 0}, // pre-2010 firmware
		ResInfo{Stamp: now, LineFreqHz: 50},
		ResCalibration{Calibration: Calibration{GainA: 1.00089955, GainB: -2e-9}},
		ResPowerUse{
			Pulse1s: Pulses{Count: 58, Seconds: 1},
			Pulse8s: Pulses{Count: 463, Seconds: 8},
		},
		ResClockInfo{Hour: 11, Minute: 36, Second: 58, DayOfWeek: 6},
	}

	for _, resp := range responses {
		if errs := ValidateResponse(resp); len(errs) != 0 {
			t.Errorf("%T: expected clean, got %v", resp, errs)
		}
	}
}

func TestValidate_Anomalies(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want AnomalyType
	}{
		{
			"ack error status",
			Ack{Status: AckError},
			AnomalyAckFailure,
		},
		{
			"ack timed out status",
			Ack{Status: AckTimedOut},
			AnomalyAckFailure,
		},
		{
			"blank flash stamp",
			ResInfo{Stamp: LogDate{Year: 0xFF, Month: 0xFF, Minutes: 0xFFFF}, LineFreqHz: 50},
			AnomalyInvalidStamp,
		},
		{
			"unknown line frequency",
			ResInfo{Stamp: NewLogDate(time.Now()), LineFreqHz: 0},
			AnomalyUnknownLineFreq,
		},
		{
			"calibration gain from blank flash",
			ResCalibration{Calibration: Calibration{GainA: 85.0}},
			AnomalyInvalidCalibration,
		},
		{
			"calibration gain not finite",
			ResCalibration{Calibration: Calibration{GainA: 1.0, GainB: float32(math.NaN())}},
			AnomalyInvalidCalibration,
		},
		{
			"saturated one second counter",
			ResPowerUse{Pulse1s: Pulses{Count: 0xFFFF, Seconds: 1}, Pulse8s: Pulses{Count: 10, Seconds: 8}},
			AnomalySaturatedCounter,
		},
		{
			"hour out of range",
			ResClockInfo{Hour: 25, Minute: 0, Second: 0, DayOfWeek: 1},
			AnomalyInvalidClock,
		},
		{
			"weekday out of range",
			ResClockInfo{Hour: 12, Minute: 0, Second: 0, DayOfWeek: 8},
			AnomalyInvalidClock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateResponse(tt.resp)
			if !hasAnomaly(errs, tt.want) {
				t.Errorf("expected anomaly %d, got %v", tt.want, errs)
			}
		})
	}
}

func TestValidate_ErrorCarriesDetails(t *testing.T) {
	errs := ValidateResponse(Ack{Status: AckError})
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Error() == "" {
		t.Error("validation error must have a message")
	}
	if status, ok := errs[0].Details["status"]; !ok || status != uint16(AckError) {
		t.Errorf("details should carry the status, got %v", errs[0].Details)
	}
}
