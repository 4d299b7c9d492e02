/*
NAME
  psipid.go

DESCRIPTION
  psipid.go carries a single PSI/SI table on a fixed PID, regenerating and
  resubmitting its section to the encapsulator at a configured period. The
  mux owns one PsiPid per fixed table (PAT, CAT, NIT, SDT, EIT, TDT); each
  is otherwise an ordinary Input from the scheduler's point of view.

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
	"github.com/ausocean/tsmux/encaps"
	"github.com/ausocean/tsmux/flow"
)

// DefaultPSIPeriod is the nominal repetition interval for PAT/PMT/CAT per
// ISO/IEC 13818-1 recommendation. The DVB SI tables use their own, longer
// periods (natPeriod, sdtPeriod, eitPeriod, tdtPeriod below).
const DefaultPSIPeriod = 100 * time.Millisecond

// Per-table default repetition periods for the DVB SI tables this mux can
// emit, taken from ETSI TR 101 211's recommended maximum repetition
// intervals.
const (
	natPeriod = 10 * time.Second
	sdtPeriod = 2 * time.Second
	eitPeriod = 2 * time.Second
	tdtPeriod = 30 * time.Second
	catPeriod = DefaultPSIPeriod
	patPeriod = DefaultPSIPeriod
)

// PsiPid carries one periodically-regenerated PSI/SI table on a fixed PID.
type PsiPid struct {
	pid    uint16
	period time.Duration
	last   time.Time
	enc    *encaps.Encaps
	gen    func() []byte
}

// newPsiPid constructs a PsiPid bound to pid, regenerating its section via
// gen every period.
func newPsiPid(log logging.Logger, pid uint16, period time.Duration, gen func() []byte) (*PsiPid, error) {
	def := &flow.Definition{PID: pid, Def: flow.DefPSI, Type: flow.TypeOther}
	enc, err := encaps.New(log, def)
	if err != nil {
		return nil, newErr(KindExternal, "mux.newPsiPid", err)
	}
	return &PsiPid{pid: pid, period: period, enc: enc, gen: gen}, nil
}

// Due reports whether this PsiPid's table should be regenerated and
// re-submitted at now.
func (p *PsiPid) Due(now time.Time) bool {
	return p.last.IsZero() || now.Sub(p.last) >= p.period
}

// Refresh regenerates and submits the table to the encapsulator if Due,
// updating the last-sent timestamp.
func (p *PsiPid) Refresh(now time.Time) error {
	if !p.Due(now) {
		return nil
	}
	section := p.gen()
	if section == nil {
		return nil
	}
	if err := p.enc.Input(now, section); err != nil {
		return newErr(KindExternal, "mux.PsiPid.Refresh", err)
	}
	p.last = now
	return nil
}

// Splice pulls one queued TS packet for this PID.
func (p *PsiPid) Splice(timeout time.Duration) ([]byte, bool, error) {
	buf, ok, err := p.enc.Splice(timeout)
	if err != nil {
		return nil, false, newErr(KindExternal, "mux.PsiPid.Splice", err)
	}
	if !ok {
		return nil, false, nil
	}
	b, err := buf.Bytes()
	if err != nil {
		return nil, false, newErr(KindExternal, "mux.PsiPid.Splice", err)
	}
	return b, true, nil
}

// patGenerator builds the generator closure for the mux's PAT, listing
// every current program's PMT PID.
func patGenerator(m *Mux) func() []byte {
	return func() []byte {
		programs := make(map[uint16]uint16, len(m.programs))
		for _, p := range m.programs {
			programs[p.Number] = p.PMTPID
		}
		return psi.NewPATPSI(m.transportStreamID, m.patVersion(), programs).Bytes()
	}
}

// catGenerator builds the generator closure for the mux's CAT, listing the
// configured conditional-access descriptors.
func catGenerator(m *Mux) func() []byte {
	return func() []byte {
		if len(m.caDescriptors) == 0 {
			return nil
		}
		return psi.NewCATPSI(0, m.caDescriptors).Bytes()
	}
}

// tdtGenerator builds the generator closure for the mux's TDT, stamping
// wall-clock time at generation.
func tdtGenerator(m *Mux) func() []byte {
	return func() []byte {
		return psi.NewTDT(m.clockFunc())
	}
}

// sdtGenerator builds the generator closure for the mux's SDT, one service
// entry per program.
func sdtGenerator(m *Mux) func() []byte {
	return func() []byte {
		sdt := &psi.SDT{OriginalNetworkID: m.networkID}
		for _, p := range m.programs {
			sdt.Services = append(sdt.Services, psi.ServiceEntry{
				ServiceID:           p.Number,
				EITPresentFollowing: true,
				RunningStatus:       psi.RunningRunning,
			})
		}
		return psi.NewSDTPSI(m.transportStreamID, 0, true, sdt).Bytes()
	}
}

// nitGenerator builds the generator closure for the mux's NIT.
func nitGenerator(m *Mux) func() []byte {
	return func() []byte {
		nit := &psi.NIT{
			NetworkDescriptors: []psi.Descriptor{psi.NetworkNameDescriptor(m.networkName)},
			Streams: []psi.TransportStreamEntry{{
				TransportStreamID: m.transportStreamID,
				OriginalNetworkID: m.networkID,
			}},
		}
		return psi.NewNITPSI(m.networkID, 0, true, nit).Bytes()
	}
}
