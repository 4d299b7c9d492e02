/*
NAME
  flowdef.go

DESCRIPTION
  flowdef.go provides the FlowDefinition type that describes the shape of an
  elementary stream or PSI table flowing through the multiplexer: its wire
  MIME-like tag, PID/SID, rates and PES packetisation parameters.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package flow provides the FlowDefinition data model shared by the PSI,
// T-STD, encapsulator and mux packages.
package flow

import "time"

// Def is the MIME-like tag identifying the content carried by a flow.
type Def string

// Known flow definitions. The "." suffix mirrors the hierarchical tagging
// convention used across the flow graph: "block.h264.pic." is narrower than
// "block.".
const (
	DefH264   Def = "block.h264.pic."
	DefH265   Def = "block.h265.pic."
	DefMPEG2  Def = "block.mpeg2.pic."
	DefMP2    Def = "block.mp2.sound."
	DefAAC    Def = "block.aac.sound."
	DefAC3    Def = "block.ac3.sound."
	DefEAC3   Def = "block.eac3.sound."
	DefDTS    Def = "block.dts.sound."
	DefOpus   Def = "block.opus.sound."
	DefS302M  Def = "block.s302m.sound."
	DefSCTE35 Def = "void.scte35."
	DefPSI    Def = "block.mpegtspsi."
	DefTTX    Def = "block.dvb_teletext.pic.sub."
	DefDVBSub Def = "block.dvb_subtitle.pic.sub."
	DefUnk    Def = ""
)

// Rational is a rational number, used for frame rates.
type Rational struct {
	Num, Den uint64
}

// Type categorises the role an elementary stream plays for scheduling
// purposes (PCR-carrier eligibility, retention delay, etc).
type Type int

// Input types, mirroring the mux data model's input_type.
const (
	TypeUnknown Type = iota
	TypeVideo
	TypeAudio
	TypeOther
	TypeSCTE35
)

func (t Type) String() string {
	switch t {
	case TypeVideo:
		return "video"
	case TypeAudio:
		return "audio"
	case TypeOther:
		return "other"
	case TypeSCTE35:
		return "scte35"
	default:
		return "unknown"
	}
}

// Definition is the immutable, typed description attached to every
// elementary stream and PSI table in flight. Once built, a Definition is
// never mutated in place; changes are published as a new instance assigned
// over the old one.
type Definition struct {
	Def    Def    // MIME-like tag.
	RawDef string // Wire-format tag, e.g. stream_type value rendered as text.

	PID uint16 // Packet identifier this flow is carried on.
	SID uint16 // Program/service number this flow belongs to, 0 if N/A.

	Octetrate  uint64 // Declared byte rate of the flow, bytes/sec.
	BufferSize uint64 // T-STD buffer size for this flow, bytes.

	FPS     Rational // Frame rate, for video.
	Samples uint64   // Samples per frame, for audio.
	Rate    uint64   // Sample rate in Hz, for audio.
	Channels uint8   // Channel count, for audio.

	TBRate uint64 // T-STD transport buffer drain rate, bytes/sec.

	PESID             byte          // PES stream_id to use when packetising.
	PESHeaderMinimum  int           // Minimum PES header size for this codec.
	PESMinDuration    time.Duration // Minimum duration to accumulate before flushing a PES.
	PESAlignment      bool          // Whether PES payloads must start on a TS packet boundary.
	MaxDelay          time.Duration // Maximum retention delay before a fatal T-STD violation.
	Latency           time.Duration // End-to-end latency budget contributed by this flow.

	Descriptors [][]byte // Opaque ordered descriptor byte slices (verbatim unknown tags included).

	Type Type // Scheduling category.
}

// Clone returns a deep copy of d suitable for publishing as a new flow
// definition after a change, leaving the receiver untouched.
func (d *Definition) Clone() *Definition {
	c := *d
	if d.Descriptors != nil {
		c.Descriptors = make([][]byte, len(d.Descriptors))
		for i, desc := range d.Descriptors {
			c.Descriptors[i] = append([]byte(nil), desc...)
		}
	}
	return &c
}

// MaxRetentionDelay returns the conventional maximum retention delay for a
// flow's def, per the T-STD / encapsulator rules. SCTE-35 flows never
// expire: the zero Duration with ok=false signals "no bound".
func MaxRetentionDelay(def Def) (d time.Duration, ok bool) {
	switch def {
	case DefH264, DefH265:
		return 10 * time.Second, true
	case DefSCTE35:
		return 0, false
	case DefDVBSub:
		return 60 * time.Second, true
	case DefTTX:
		return 200 * time.Millisecond, true
	default:
		return 1 * time.Second, true
	}
}
