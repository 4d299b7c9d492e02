/*
NAME
  input.go

DESCRIPTION
  input.go defines Input, the mux's per-elementary-stream data model: its
  flow definition, T-STD buffer, and encapsulator, plus the octetrate
  renegotiation policy that bounds how often an input may change its
  declared rate before the mux treats further changes as a fatal error.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mux

import (
	"errors"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/tsmux/encaps"
	"github.com/ausocean/tsmux/flow"
	"github.com/ausocean/tsmux/tstd"
)

// errTooManyOctetrateChanges is wrapped into a KindInvalid Error once an
// input exceeds MaxOctetrateChanges renegotiations.
var errTooManyOctetrateChanges = errors.New("too many octetrate renegotiations")

// MaxOctetrateChanges is the number of times an Input may renegotiate its
// octetrate before the mux refuses further changes with KindInvalid. This
// mirrors the upstream spec's heuristic bound against a misbehaving source
// thrashing the schedule with continual rate changes.
const MaxOctetrateChanges = 10

// Input is one elementary stream (or PSI table, via the psiPid wrapper)
// flowing into a Program.
type Input struct {
	log logging.Logger

	def *flow.Definition
	std *tstd.Buffer
	enc *encaps.Encaps

	octetrateChanges int
	pcr              bool // whether this input carries the program's PCR.
}

// NewInput constructs an Input for def, wiring up its T-STD buffer and
// encapsulator.
func NewInput(log logging.Logger, def *flow.Definition) (*Input, error) {
	maxDelay, _ := flow.MaxRetentionDelay(def.Def)
	std := tstd.New(log, def.BufferSize, def.TBRate, maxDelay)

	enc, err := encaps.New(log, def)
	if err != nil {
		return nil, newErr(KindExternal, "mux.NewInput", err)
	}

	return &Input{log: log, def: def, std: std, enc: enc}, nil
}

// Def returns the input's current flow definition.
func (in *Input) Def() *flow.Definition { return in.def }

// SetPCRCarrier marks or unmarks this input as the program's PCR carrier.
func (in *Input) SetPCRCarrier(v bool) {
	in.pcr = v
	in.enc.SetCRProg(v)
}

// IsPCRCarrier reports whether this input carries the program's PCR.
func (in *Input) IsPCRCarrier() bool { return in.pcr }

// SetOctetrate renegotiates the input's declared octetrate. Once more than
// MaxOctetrateChanges renegotiations have occurred, further changes are
// refused: a source that keeps changing its rate is no longer considered
// well-behaved, and continuing to honour it risks destabilising the
// scheduler's interval computation.
func (in *Input) SetOctetrate(rate uint64) error {
	if in.def.Octetrate == rate {
		return nil
	}
	if in.octetrateChanges >= MaxOctetrateChanges {
		return newErr(KindInvalid, "mux.Input.SetOctetrate", errTooManyOctetrateChanges)
	}
	in.octetrateChanges++
	def := in.def.Clone()
	def.Octetrate = rate
	in.def = def
	in.enc.SetFlowDef(def)
	return nil
}

// Push admits one access unit (already PES-packetised by the caller, or
// raw section bytes for a PSI input) at pipeline time now, enforcing the
// T-STD retention bound before handing it to the encapsulator.
func (in *Input) Push(now time.Time, data []byte) error {
	if err := in.std.Push(now, len(data)); err != nil {
		return newErr(KindInvalid, "mux.Input.Push", err)
	}
	if err := in.enc.Input(now, data); err != nil {
		return newErr(KindExternal, "mux.Input.Push", err)
	}
	return nil
}

// Splice pulls one queued TS packet from the input's encapsulator.
func (in *Input) Splice(timeout time.Duration) ([]byte, bool, error) {
	buf, ok, err := in.enc.Splice(timeout)
	if err != nil {
		return nil, false, newErr(KindExternal, "mux.Input.Splice", err)
	}
	if !ok {
		return nil, false, nil
	}
	b, err := buf.Bytes()
	if err != nil {
		return nil, false, newErr(KindExternal, "mux.Input.Splice", err)
	}
	return b, true, nil
}

// EOS marks the input as finished; already-queued packets may still be
// spliced out.
func (in *Input) EOS() { in.enc.EOS() }
