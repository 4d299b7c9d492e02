/*
NAME
  program.go

DESCRIPTION
  program.go defines Program, the mux's grouping of elementary stream
  Inputs under one program_number, tracking the PMT version and deciding
  when a change to the program's Inputs requires bumping it.

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
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/tsmux/container/mts/psi"
	"github.com/ausocean/tsmux/flow"
)

// Stream type values, per ISO/IEC 13818-1 table 2-34 and the ATSC/DVB
// private_data extensions used for AC-3/E-AC-3/DTS/SCTE-35.
const (
	streamTypeMPEG2Video = 0x02
	streamTypeMP2Audio   = 0x03
	streamTypeAAC        = 0x0f
	streamTypeH264       = 0x1b
	streamTypeH265       = 0x24
	streamTypeAC3        = 0x81
	streamTypeEAC3       = 0x87
	streamTypeDTS        = 0x82
	streamTypePrivate    = 0x06 // teletext, DVB subtitles, S302M: PES private data.
	streamTypeSCTE35     = 0x86
)

// Program is one program_number's worth of elementary streams, tracked
// for PMT generation.
type Program struct {
	Number  uint16
	PMTPID  uint16
	PCRPID  uint16
	Inputs  []*Input
	version byte
	dirty   bool // true once an Input add/remove/descriptor change needs a new PMT version.

	pmt *PsiPid // carries the program's PMT section, per psi_pid_pmt.
}

// NewProgram returns a Program with no inputs yet. Its PMT carrier
// regenerates at pmtPeriod, refreshed by the owning Mux's prepare phase
// alongside the fixed PAT/CAT/NIT/SDT/EIT/TDT carriers.
func NewProgram(log logging.Logger, number, pmtPID uint16, pmtPeriod time.Duration) (*Program, error) {
	p := &Program{Number: number, PMTPID: pmtPID, dirty: true}
	pmt, err := newPsiPid(log, pmtPID, pmtPeriod, func() []byte {
		return p.GeneratePMT().Bytes()
	})
	if err != nil {
		return nil, err
	}
	p.pmt = pmt
	return p, nil
}

// SetPMTInterval sets the program's PMT repetition period.
func (p *Program) SetPMTInterval(d time.Duration) { p.pmt.period = d }

// PMTCarrier returns the PsiPid carrying this program's PMT, for the mux
// scheduler's carrier list.
func (p *Program) PMTCarrier() *PsiPid { return p.pmt }

// AddInput attaches in to the program, marking the PMT dirty so the next
// GeneratePMT call bumps the version. If in carries the program's PCR, the
// program's PCRPID is updated to match.
func (p *Program) AddInput(in *Input) {
	p.Inputs = append(p.Inputs, in)
	if in.IsPCRCarrier() {
		p.PCRPID = in.Def().PID
	}
	p.dirty = true
}

// RemoveInput detaches the input carried on pid, if present, reporting
// whether a matching input was found.
func (p *Program) RemoveInput(pid uint16) bool {
	for i, in := range p.Inputs {
		if in.Def().PID == pid {
			p.Inputs = append(p.Inputs[:i], p.Inputs[i+1:]...)
			p.dirty = true
			return true
		}
	}
	return false
}

// MarkDirty forces the next GeneratePMT call to bump the PMT version, used
// when a conformance-affecting option changes (e.g. a new descriptor is
// attached to an existing stream) without an Input being added or removed.
func (p *Program) MarkDirty() { p.dirty = true }

// GeneratePMT renders the program's current PMT, bumping the version
// whenever the input set or any of its descriptors changed since the last
// call -- per the resolved rule that ANY conformance-affecting change
// bumps the version, not just input add/remove.
func (p *Program) GeneratePMT() *psi.PSI {
	if p.dirty {
		p.version = (p.version + 1) & 0x1f
		p.dirty = false
	}

	streams := make([]psi.StreamSpecificData, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		streams = append(streams, psi.StreamSpecificData{
			StreamType:  StreamTypeFor(in.Def().Def),
			PID:         in.Def().PID,
			Descriptors: toDescriptors(in.Def().Descriptors),
		})
	}
	return psi.NewPMTPSI(p.Number, p.version, p.PCRPID, streams)
}

// StreamTypeFor maps a flow definition tag to its MPEG-TS stream_type
// value for the PMT's elementary stream loop.
func StreamTypeFor(def flow.Def) byte {
	switch def {
	case flow.DefMPEG2:
		return streamTypeMPEG2Video
	case flow.DefMP2:
		return streamTypeMP2Audio
	case flow.DefAAC:
		return streamTypeAAC
	case flow.DefH264:
		return streamTypeH264
	case flow.DefH265:
		return streamTypeH265
	case flow.DefAC3:
		return streamTypeAC3
	case flow.DefEAC3:
		return streamTypeEAC3
	case flow.DefDTS:
		return streamTypeDTS
	case flow.DefSCTE35:
		return streamTypeSCTE35
	case flow.DefTTX, flow.DefDVBSub, flow.DefS302M:
		return streamTypePrivate
	default:
		return streamTypePrivate
	}
}

// toDescriptors wraps a flow.Definition's raw descriptor bytes (tag,
// length, data already framed) as psi.Descriptor values for embedding in
// the PMT's stream loop.
func toDescriptors(raw [][]byte) []psi.Descriptor {
	if len(raw) == 0 {
		return nil
	}
	out := make([]psi.Descriptor, 0, len(raw))
	for _, d := range raw {
		if len(d) < 2 {
			continue
		}
		out = append(out, psi.Descriptor{Tag: d[0], Len: d[1], Data: append([]byte(nil), d[2:]...)})
	}
	return out
}
