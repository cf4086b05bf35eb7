// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Stroomlab

package plugwise

import (
	"context"
	"time"
)

// PowerSample is one hour of metered consumption from the device log.
type PowerSample struct {
	Time   time.Time
	Pulses uint32
	KWh    float64
}

// HistoryIterator walks the hourly consumption log one slot at a time,
// fetching slots on demand so a deep history does not flood the mesh.
// Usage follows the scanner pattern:
//
//	it := circle.History(ctx, 0)
//	for it.Next() {
//		s := it.Sample()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type HistoryIterator struct {
	ctx    context.Context
	circle *Circle

	slot     uint32
	lastSlot uint32
	started  bool

	buf []PowerSample
	idx int
	cur PowerSample
	err error
}

func newHistoryIterator(ctx context.Context, c *Circle, fromSlot int64) *HistoryIterator {
	it := &HistoryIterator{ctx: ctx, circle: c}
	if fromSlot > 0 {
		it.slot = uint32(fromSlot)
	}
	return it
}

// Next advances to the following sample, fetching the next log slot when
// the current one is exhausted. It returns false at the end of the log or
// on error; Err distinguishes the two.
func (it *HistoryIterator) Next() bool {
	if it.err != nil {
		return false
	}

	if !it.started {
		// The device's info snapshot names the slot it is currently
		// writing; everything up to and including it is readable.
		info, err := it.circle.Info(it.ctx)
		if err != nil {
			it.err = err
			return false
		}
		it.lastSlot = info.LastLogSlot
		it.started = true
	}

	for {
		if it.idx < len(it.buf) {
			it.cur = it.buf[it.idx]
			it.idx++
			return true
		}
		if it.slot > it.lastSlot {
			return false
		}

		samples, err := it.circle.PowerBuffer(it.ctx, it.slot)
		if err != nil {
			it.err = err
			return false
		}
		it.slot++
		it.buf = samples
		it.idx = 0
	}
}

// Sample returns the sample Next advanced to.
func (it *HistoryIterator) Sample() PowerSample { return it.cur }

// Err returns the error that ended iteration, if any.
func (it *HistoryIterator) Err() error { return it.err }
