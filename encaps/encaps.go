/*
NAME
  encaps.go

DESCRIPTION
  encaps.go implements the TS encapsulator: it accepts PES-packetised (or,
  for PSI flows, section-framed) input blocks and, pulled by the mux
  scheduler via Splice, emits 188-byte MPEG-TS packets carrying them, with
  PCR insertion and continuity counter management. This is the pull-based
  counterpart to the push-style Encoder the container/mts package's
  teacher code modeled; the mux's cooperative scheduler calls Splice once
  per tick rather than the flow pushing packets as it is written.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package encaps provides the pull-based TS encapsulator that turns one
// elementary stream's PES (or PSI section) input into a queue of 188-byte
// MPEG-TS packets, ready to be spliced into the output by the mux
// scheduler.
package encaps

import (
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"github.com/pkg/errors"

	"github.com/ausocean/tsmux/container/mts"
	"github.com/ausocean/tsmux/container/mts/pes"
	"github.com/ausocean/tsmux/flow"
	"github.com/ausocean/tsmux/ubuf"
)

// Default pool sizing for the pending-packet queue: enough 188-byte
// packets to cover a couple of PES packets' worth of a typical video
// frame without forcing a reallocation on every Input call.
const (
	defaultQueueElements = 64
	defaultQueueTimeout  = 200 * time.Millisecond
)

// MaxQueueLength is the default cap, in TS packets, on how much an
// encapsulator will buffer before Input starts reporting ErrQueueFull.
const MaxQueueLength = 512

// Encaps packetises one elementary stream's access units into MPEG-TS
// packets and hands them out one at a time via Splice. It is not safe for
// concurrent use: the mux core calls into it only from the scheduler tick.
type Encaps struct {
	log logging.Logger

	def  *flow.Definition
	pid  uint16
	cc   byte

	queue      *pool.Buffer
	queueLen   int
	maxLength  int

	pcrProg   bool // whether this flow's PID also carries the program's PCR.
	lastPCR   time.Time
	pcrPeriod time.Duration

	pesSpace [pes.MaxPesSize]byte

	eos bool
}

// Option configures an Encaps at construction time.
type Option func(*Encaps) error

// New returns an Encaps for the given flow definition, applying options in
// order.
func New(log logging.Logger, def *flow.Definition, opts ...Option) (*Encaps, error) {
	e := &Encaps{
		log:       log,
		def:       def,
		pid:       def.PID,
		maxLength: MaxQueueLength,
		pcrPeriod: 40 * time.Millisecond,
		queue:     pool.NewBuffer(defaultQueueElements, mts.PacketSize, defaultQueueTimeout),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, errors.Wrap(err, "applying encaps option")
		}
	}
	return e, nil
}

// SetFlowDef replaces the flow definition used for subsequent Input calls,
// e.g. after a mid-stream octetrate renegotiation.
func (e *Encaps) SetFlowDef(def *flow.Definition) {
	e.def = def
	e.pid = def.PID
}

// SetTBSize sets the nominal transport buffer size hint; purely
// informational here, the actual rate shaping happens in package tstd.
func (e *Encaps) SetTBSize(n uint64) {
	def := e.def.Clone()
	def.BufferSize = n
	e.def = def
}

// SetMaxDelay overrides the flow's retention bound.
func (e *Encaps) SetMaxDelay(d time.Duration) {
	def := e.def.Clone()
	def.MaxDelay = d
	e.def = def
}

// SetMaxLength sets the maximum number of queued TS packets Input will
// admit before returning ErrQueueFull.
func (e *Encaps) SetMaxLength(n int) { e.maxLength = n }

// SetCRProg marks this encapsulator's PID as the program's PCR carrier. A
// PCR is then carried in the adaptation field of an access unit's first
// packet whenever at least pcrPeriod (40ms by default) has passed since the
// last PCR. No PCR-only packets are emitted between access units.
func (e *Encaps) SetCRProg(v bool) { e.pcrProg = v }

// Input accepts one PES-framed (or PSI section-framed) access unit,
// packetises it into 188-byte TS packets, and enqueues them for Splice.
// now is the pipeline clock at which this access unit is logically
// presented (used for the PUSI packet's PCR when this flow is the
// program's PCR carrier).
func (e *Encaps) Input(now time.Time, data []byte) error {
	if e.eos {
		return ErrEOS
	}
	if e.queueLen+pesPacketCount(len(data)) > e.maxLength {
		return ErrQueueFull
	}

	pusi := true
	for len(data) != 0 {
		pkt := mts.Packet{
			PUSI: pusi,
			PID:  e.pid,
			RAI:  pusi,
			CC:   e.nextCC(),
			AFC:  mts.HasPayload,
		}
		if pusi && e.pcrProg && now.Sub(e.lastPCR) >= e.pcrPeriod {
			pkt.AFC |= mts.HasAdaptationField
			pkt.PCRF = true
			pkt.PCR = pcrFromTime(now)
			e.lastPCR = now
		}
		n := pkt.FillPayload(data)
		data = data[n:]
		pusi = false

		b := pkt.Bytes(nil)
		if _, err := e.queue.Write(b); err != nil {
			return errors.Wrap(err, "encaps: queueing packet")
		}
		e.queueLen++
	}
	return nil
}

// Splice pops one queued TS packet, for the scheduler to place in the
// current tick's MTU-sized output. ok is false when nothing is queued.
func (e *Encaps) Splice(timeout time.Duration) (buf *ubuf.Buf, ok bool, err error) {
	chunk, err := e.queue.Next(timeout)
	if err != nil {
		if err == pool.ErrTimeout {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "encaps: splice")
	}
	defer chunk.Close()
	e.queueLen--
	return ubuf.New(chunk.Bytes()), true, nil
}

// GetCC returns the encapsulator's current continuity counter value.
func (e *Encaps) GetCC() byte { return e.cc }

// SetCC forces the continuity counter, used when reattaching an
// encapsulator to an existing PID after a discontinuity repair.
func (e *Encaps) SetCC(cc byte) { e.cc = cc & 0x0f }

func (e *Encaps) nextCC() byte {
	cc := e.cc
	e.cc = (e.cc + 1) & 0x0f
	return cc
}

// Flush discards any queued but unspliced packets, used when a flow is
// removed mid-stream.
func (e *Encaps) Flush() {
	e.queue.Flush()
	e.queueLen = 0
}

// EOS marks end-of-stream: further Input calls return ErrEOS, while
// already-queued packets may still be spliced out.
func (e *Encaps) EOS() { e.eos = true }

// pesPacketCount estimates how many TS packets n bytes of PES payload will
// expand into, used for the queue-length admission check.
func pesPacketCount(n int) int {
	const payloadPerPacket = mts.PacketSize - 4
	if n == 0 {
		return 1
	}
	return (n + payloadPerPacket - 1) / payloadPerPacket
}

// pcrFromTime converts a pipeline instant into a 42-bit PCR value (27MHz
// base + extension), using only the 90kHz-resolution base field and
// leaving the 27MHz extension at zero, matching the PCR precision the
// teacher's encoder produced.
func pcrFromTime(t time.Time) uint64 {
	const pcrFrequency = 90000
	return uint64(t.UnixNano()) * pcrFrequency / 1e9 * 300
}
