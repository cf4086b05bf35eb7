// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time copy of session counters, safe to read
// without further locking.
type StatsSnapshot struct {
	Started time.Time

	FramesDecoded uint64
	FrameErrors   uint64
	CRCErrors     uint64
	NoiseBytes    uint64
	Unsolicited   uint64

	RequestsSent uint64
	Retries      uint64
	Timeouts     uint64
}

// FrameRate is the average decoded-frame rate since the session started.
func (s StatsSnapshot) FrameRate() float64 {
	elapsed := time.Since(s.Started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.FramesDecoded) / elapsed
}

// ErrorRate is the fraction of inbound frames that failed validation.
func (s StatsSnapshot) ErrorRate() float64 {
	total := s.FramesDecoded + s.FrameErrors
	if total == 0 {
		return 0
	}
	return float64(s.FrameErrors) / float64(total)
}

func (s StatsSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "uptime: %s\n", time.Since(s.Started).Round(time.Second))
	fmt.Fprintf(&b, "frames decoded: %d (%.2f/s)\n", s.FramesDecoded, s.FrameRate())
	fmt.Fprintf(&b, "frame errors: %d (%d CRC), error rate %.2f%%\n", s.FrameErrors, s.CRCErrors, s.ErrorRate()*100)
	fmt.Fprintf(&b, "noise bytes skipped: %d\n", s.NoiseBytes)
	fmt.Fprintf(&b, "unsolicited frames dropped: %d\n", s.Unsolicited)
	fmt.Fprintf(&b, "requests: %d sent, %d retries, %d timed out", s.RequestsSent, s.Retries, s.Timeouts)
	return b.String()
}

// Statistics accumulates session counters. The read loop and request paths
// update it concurrently.
type Statistics struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

func NewStatistics() *Statistics {
	return &Statistics{snap: StatsSnapshot{Started: time.Now()}}
}

// Snapshot copies the current counters.
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Statistics) observeFrame() {
	s.mu.Lock()
	s.snap.FramesDecoded++
	s.mu.Unlock()
}

func (s *Statistics) observeDecodeError(err error) {
	s.mu.Lock()
	s.snap.FrameErrors++
	var fe *FrameError
	if errors.As(err, &fe) && fe.Checksum {
		s.snap.CRCErrors++
	}
	s.mu.Unlock()
}

func (s *Statistics) observeNoise(n uint64) {
	s.mu.Lock()
	s.snap.NoiseBytes += n
	s.mu.Unlock()
}

func (s *Statistics) observeUnsolicited() {
	s.mu.Lock()
	s.snap.Unsolicited++
	s.mu.Unlock()
}

func (s *Statistics) observeRequest() {
	s.mu.Lock()
	s.snap.RequestsSent++
	s.mu.Unlock()
}

func (s *Statistics) observeRetry() {
	s.mu.Lock()
	s.snap.Retries++
	s.mu.Unlock()
}

func (s *Statistics) observeTimeout() {
	s.mu.Lock()
	s.snap.Timeouts++
	s.mu.Unlock()
}
