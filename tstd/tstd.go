/*
NAME
  tstd.go

DESCRIPTION
  tstd.go implements the per-flow T-STD (Transport Stream System Target
  Decoder) buffer model: a leaky bucket that drains at a flow's declared
  transport buffer rate and flags a fatal violation once a unit has sat in
  the bucket longer than the flow's max_delay.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package tstd models the T-STD transport buffer used to detect a flow
// that is arriving faster than its declared drain rate can absorb, per the
// retention rules in ISO/IEC 13818-1 annex C.
package tstd

import (
	"time"

	"github.com/ausocean/utils/logging"
)

// unit is one buffered block awaiting drain.
type unit struct {
	size     int
	arrived  time.Time
}

// Buffer simulates a single elementary stream's T-STD transport buffer
// (TBn). It is not safe for concurrent use, matching the mux core's
// single-threaded scheduling loop.
type Buffer struct {
	log      logging.Logger
	tbSize   uint64        // Transport buffer size, bytes.
	tbRate   uint64        // Drain rate, bytes/sec.
	maxDelay time.Duration // Retention bound before ERR_INVALID.
	occupied uint64        // Current occupancy, bytes.
	units    []unit
	lastDrain time.Time
}

// New returns a Buffer for a flow with the given transport buffer size,
// drain rate and maximum retention delay. A zero maxDelay means "no
// bound" (per flow.MaxRetentionDelay's ok=false case, e.g. SCTE-35).
func New(log logging.Logger, tbSize, tbRate uint64, maxDelay time.Duration) *Buffer {
	return &Buffer{log: log, tbSize: tbSize, tbRate: tbRate, maxDelay: maxDelay}
}

// Push admits n bytes arriving at time now. It first drains the buffer
// according to elapsed time since the last call, then admits the new
// unit. ErrOverflow is returned if admitting n would exceed tbSize;
// ErrRetention is returned if, after draining, any previously admitted
// unit has been resident longer than maxDelay.
func (b *Buffer) Push(now time.Time, n int) error {
	b.drain(now)

	if b.tbSize > 0 && b.occupied+uint64(n) > b.tbSize {
		if b.log != nil {
			b.log.Warning("tstd: buffer overflow", "occupied", b.occupied, "incoming", n, "size", b.tbSize)
		}
		return ErrOverflow
	}

	b.units = append(b.units, unit{size: n, arrived: now})
	b.occupied += uint64(n)

	if b.maxDelay > 0 && len(b.units) > 0 {
		oldest := b.units[0]
		if now.Sub(oldest.arrived) > b.maxDelay {
			if b.log != nil {
				b.log.Error("tstd: retention exceeded", "age", now.Sub(oldest.arrived), "max_delay", b.maxDelay)
			}
			return ErrRetention
		}
	}
	return nil
}

// drain removes bytes from the front of the buffer according to tbRate
// and the elapsed time since the last drain.
func (b *Buffer) drain(now time.Time) {
	if b.lastDrain.IsZero() {
		b.lastDrain = now
		return
	}
	elapsed := now.Sub(b.lastDrain)
	if elapsed <= 0 || b.tbRate == 0 {
		return
	}
	drainable := uint64(elapsed.Seconds() * float64(b.tbRate))
	b.lastDrain = now

	for drainable > 0 && len(b.units) > 0 {
		head := &b.units[0]
		if uint64(head.size) <= drainable {
			drainable -= uint64(head.size)
			b.occupied -= uint64(head.size)
			b.units = b.units[1:]
			continue
		}
		head.size -= int(drainable)
		b.occupied -= drainable
		drainable = 0
	}
}

// Occupancy returns the current buffer occupancy in bytes.
func (b *Buffer) Occupancy() uint64 { return b.occupied }

// Reset clears all buffered units, used when a flow definition changes and
// the buffer model must restart from empty.
func (b *Buffer) Reset() {
	b.units = nil
	b.occupied = 0
	b.lastDrain = time.Time{}
}
