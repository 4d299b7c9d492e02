/*
NAME
  mux.go

DESCRIPTION
  mux.go implements Mux, the top-level scheduler that ties Programs,
  Inputs and PsiPid table carriers together into a single MPEG-TS output.
  Each Tick call runs one full prepare/splice/aggregate/advance pass and
  returns one MTU-sized block of 188-byte packets, following the
  single-threaded cooperative model: every exported method assumes the
  caller serializes its calls.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mux implements the MPEG-TS multiplexer scheduler: it owns a set
// of Programs (each a group of elementary-stream Inputs) plus the fixed
// PSI/SI table carriers, and produces a continuous, conformant transport
// stream by pulling from each via a tick-based loop.
package mux

import (
	"sort"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/tsmux/container/mts"
	"github.com/ausocean/tsmux/container/mts/psi"
	"github.com/ausocean/tsmux/flow"
)

// UclockFreq is the 27MHz system clock frequency PCR values are expressed
// against, per ISO/IEC 13818-1.
const UclockFreq = 27000000

// Mode names the scheduler's pacing mode. The mode is recorded by SetMode
// and reported by Mode; Tick behaves the same in every mode and does no
// pacing of its own, so the caller decides when each tick runs.
type Mode int

const (
	// ModeLive names real-time output.
	ModeLive Mode = iota
	// ModeFile names muxing from already-captured files.
	ModeFile
	// ModeCapped names capped-rate output.
	ModeCapped
)

// nbPackets is the number of ticks per live-mode scheduling pass; Tick
// does not use it.
const nbPackets = 7

// defaultMTU is the default output aggregate size: one TS packet. Callers
// muxing to a fixed-size carrier (e.g. 7 packets per UDP datagram) call
// SetOutputSize to change it.
const defaultMTU = mts.PacketSize

// Conformance-specific maximum PSI/PCR repetition intervals, clamped
// against by SetPATInterval et al.
const (
	isoMaxPSI  = 250 * time.Millisecond
	isoMaxPCR  = 100 * time.Millisecond
	dvbMaxPSI  = 100 * time.Millisecond
	dvbMaxPCR  = 40 * time.Millisecond
	atscMaxPSI = 100 * time.Millisecond
)

// Mux is the scheduler. It is not safe for concurrent use.
type Mux struct {
	log logging.Logger

	conformance       Conformance
	autoConformance   bool
	mtu               int
	mode              Mode
	fixedOctetrate    uint64 // 0 means auto-discover.
	paddingOctetrate  uint64
	muxDelay          time.Duration
	frozen            bool // true while FreezePSI(true) holds the PAT version.

	transportStreamID uint16
	networkID         uint16
	networkName       string
	caDescriptors     []psi.Descriptor
	clockFunc         func() time.Time

	programs   map[uint16]*Program
	nextPMTPID uint16

	pat, cat, nit, sdt, tdt *PsiPid
	eit                     *PsiPid

	patVersionVal byte
	patDirty      bool

	padding []byte // precomputed stuffing packet, PID 0x1FFF, all-0xFF payload.

	remainder time.Duration // sub-tick accumulator, avoids interval drift.
}

// Option configures a Mux at construction time.
type Option func(*Mux)

// WithConformance sets the mux's initial conformance policy, disabling
// auto-inference from incoming flow definitions.
func WithConformance(c Conformance) Option {
	return func(m *Mux) { m.conformance = c; m.autoConformance = false }
}

// WithTransportStreamID sets the transport_stream_id carried in the PAT
// and NIT.
func WithTransportStreamID(id uint16) Option {
	return func(m *Mux) { m.transportStreamID = id }
}

// WithNetwork sets the original_network_id and network_name carried in
// the NIT, used only when conformance carries DVB tables.
func WithNetwork(id uint16, name string) Option {
	return func(m *Mux) { m.networkID = id; m.networkName = name }
}

// WithClock overrides the wall-clock function used to stamp the TDT,
// primarily for deterministic tests.
func WithClock(f func() time.Time) Option {
	return func(m *Mux) { m.clockFunc = f }
}

// New returns a Mux with its PAT and CAT carriers ready, applying opts in
// order. DVB carriers (NIT/SDT/EIT/TDT) are instantiated lazily by
// SetConformance when a DVB-family conformance is selected.
func New(log logging.Logger, opts ...Option) (*Mux, error) {
	m := &Mux{
		log:             log,
		conformance:     ConformanceISO,
		autoConformance: true,
		mtu:             defaultMTU,
		mode:            ModeLive,
		clockFunc:       time.Now,
		programs:        make(map[uint16]*Program),
		nextPMTPID:      mts.AutoPIDStart, // The low PID range is left to fixed and well-known PIDs.
		padding:         paddingPacket(),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.pat, err = newPsiPid(log, mts.PatPid, patPeriod, patGenerator(m))
	if err != nil {
		return nil, err
	}
	m.cat, err = newPsiPid(log, mts.CatPid, catPeriod, catGenerator(m))
	if err != nil {
		return nil, err
	}
	if m.conformance.carriesDVBTables() {
		if err := m.enableDVBTables(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// enableDVBTables instantiates the NIT/SDT/EIT/TDT carriers.
func (m *Mux) enableDVBTables() error {
	var err error
	if m.nit, err = newPsiPid(m.log, mts.NitPid, natPeriod, nitGenerator(m)); err != nil {
		return err
	}
	if m.sdt, err = newPsiPid(m.log, mts.SdtPid, sdtPeriod, sdtGenerator(m)); err != nil {
		return err
	}
	if m.eit, err = newPsiPid(m.log, mts.EitPid, eitPeriod, eitGenerator(m)); err != nil {
		return err
	}
	if m.tdt, err = newPsiPid(m.log, mts.TdtPid, tdtPeriod, tdtGenerator(m)); err != nil {
		return err
	}
	return nil
}

// disableDVBTables releases the NIT/SDT/EIT/TDT carriers.
func (m *Mux) disableDVBTables() { m.nit, m.sdt, m.eit, m.tdt = nil, nil, nil, nil }

// eitGenerator builds the generator closure for the mux's EIT, currently
// only the present/following actual-TS variant; schedule (table_id 0x50)
// is left to a future caller since this mux does not retain a forward
// programme schedule.
func eitGenerator(m *Mux) func() []byte {
	return func() []byte {
		if len(m.programs) == 0 {
			return nil
		}
		nums := m.programNumbers()
		serviceID := nums[0]
		eit := &psi.EIT{TransportStreamID: m.transportStreamID, OriginalNetworkID: m.networkID}
		return psi.NewEITPSI(serviceID, 0, 0, 0, psi.EITPresentFollowingActual, eit).Bytes()
	}
}

// programNumbers returns the mux's current program numbers in ascending
// order, used wherever table generation needs a stable iteration order.
func (m *Mux) programNumbers() []uint16 {
	nums := make([]uint16, 0, len(m.programs))
	for n := range m.programs {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

// patVersion returns the PAT's current version_number.
func (m *Mux) patVersion() byte {
	if m.patDirty && !m.frozen {
		m.patVersionVal = (m.patVersionVal + 1) & 0x1f
		m.patDirty = false
	}
	return m.patVersionVal
}

// SetConformance changes the mux's PSI/SI table policy, disabling
// auto-inference. Switching into a DVB-family conformance instantiates
// the NIT/SDT/EIT/TDT carriers; switching out of one releases them. Any
// change of conformance marks every program's PMT dirty.
func (m *Mux) SetConformance(c Conformance) error {
	m.autoConformance = false
	if c == m.conformance {
		return nil
	}
	wasD, nowD := m.conformance.carriesDVBTables(), c.carriesDVBTables()
	m.conformance = c
	for _, p := range m.programs {
		p.MarkDirty()
	}
	if nowD && !wasD {
		return m.enableDVBTables()
	}
	if wasD && !nowD {
		m.disableDVBTables()
	}
	return nil
}

// Conformance returns the mux's current PSI/SI table policy.
func (m *Mux) Conformance() Conformance { return m.conformance }

// inferConformance updates the conformance from an incoming flow
// definition's RawDef hint when auto-inference is enabled, per the rule
// that the mux infers conformance from what it is asked to carry rather
// than requiring an explicit SetConformance call.
func (m *Mux) inferConformance(def *flow.Definition) {
	if !m.autoConformance || def == nil {
		return
	}
	switch def.RawDef {
	case "dvb":
		m.SetConformance(ConformanceDVB)
		m.autoConformance = true
	case "atsc":
		m.SetConformance(ConformanceATSC)
		m.autoConformance = true
	case "isdb":
		m.SetConformance(ConformanceISDB)
		m.autoConformance = true
	}
}

// SetOutputSize sets the aggregate output block size in bytes, which must
// be a positive multiple of the 188-byte TS packet size.
func (m *Mux) SetOutputSize(mtu int) error {
	if mtu <= 0 || mtu%mts.PacketSize != 0 {
		return newErr(KindInvalid, "mux.SetOutputSize", errBadMTU)
	}
	m.mtu = mtu
	return nil
}

// OutputSize returns the current aggregate output block size.
func (m *Mux) OutputSize() int { return m.mtu }

// SetMode sets the scheduler's pacing mode.
func (m *Mux) SetMode(mode Mode) { m.mode = mode }

// Mode returns the scheduler's pacing mode.
func (m *Mux) Mode() Mode { return m.mode }

// SetOctetrate fixes the mux's total output octetrate; 0 restores
// auto-discovery from the sum of input octetrates.
func (m *Mux) SetOctetrate(rate uint64) { m.fixedOctetrate = rate }

// Octetrate returns the mux's total output octetrate, as currently in
// effect (fixed, or the discovered value).
func (m *Mux) Octetrate() uint64 {
	if m.fixedOctetrate != 0 {
		return m.fixedOctetrate
	}
	req := m.requiredOctetrate()
	floor := uint64(m.mtu) * UclockFreq / uint64(maxDuration(m.muxDelay, time.Millisecond).Microseconds()) / 1000000 * 1000000
	if req > floor {
		return req
	}
	return floor
}

// requiredOctetrate sums each program's inputs' declared octetrate and the
// padding reserve, adds a PCR tolerance margin of 2*30ppm, and rounds up to
// a whole TS packet per second. No TS/PES header overhead and no PSI
// carrier octetrate are included.
func (m *Mux) requiredOctetrate() uint64 {
	var sum uint64
	for _, p := range m.programs {
		for _, in := range p.Inputs {
			sum += in.Def().Octetrate
		}
	}
	sum += m.paddingOctetrate
	sum += sum * 60 / 1000000 // 2*30ppm PCR tolerance margin.
	const tsMultiple = uint64(mts.PacketSize)
	if sum%tsMultiple != 0 {
		sum += tsMultiple - sum%tsMultiple
	}
	return sum
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// SetMuxDelay sets the target end-to-end latency the scheduler budgets
// for when in live mode.
func (m *Mux) SetMuxDelay(d time.Duration) { m.muxDelay = d }

// MuxDelay returns the configured mux delay.
func (m *Mux) MuxDelay() time.Duration { return m.muxDelay }

// SetPaddingOctetrate reserves a fixed share of the output octetrate for
// stuffing, independent of input octetrates.
func (m *Mux) SetPaddingOctetrate(rate uint64) { m.paddingOctetrate = rate }

// PaddingOctetrate returns the reserved padding octetrate.
func (m *Mux) PaddingOctetrate() uint64 { return m.paddingOctetrate }

// FreezePSI stops PAT version increments while frozen. PMT versions still
// increment on program changes; the NIT and SDT are always version 0.
func (m *Mux) FreezePSI(frozen bool) { m.frozen = frozen }

// clampInterval applies the conformance's maximum PSI repetition interval
// and, for Delta < I/2, rounds the interval down to a tick multiple so
// the table repeats on a tick boundary.
func (m *Mux) clampInterval(i time.Duration, isPCR bool) time.Duration {
	max := m.maxInterval(isPCR)
	if i > max {
		i = max
	}
	delta := m.tickInterval()
	if delta > 0 && delta < i/2 {
		i -= i % delta
	}
	return i
}

func (m *Mux) maxInterval(isPCR bool) time.Duration {
	switch m.conformance {
	case ConformanceISO:
		if isPCR {
			return isoMaxPCR
		}
		return isoMaxPSI
	case ConformanceATSC:
		return atscMaxPSI
	default: // DVB, DVB-no-tables, ISDB.
		if isPCR {
			return dvbMaxPCR
		}
		return dvbMaxPSI
	}
}

// tickInterval returns the nominal wall-clock duration of Delta, the
// per-tick interval, derived from the current output octetrate.
func (m *Mux) tickInterval() time.Duration {
	rate := m.Octetrate()
	if rate == 0 {
		return 0
	}
	return time.Duration(uint64(m.mtu) * uint64(time.Second) / rate)
}

// SetPATInterval, SetCATInterval and the NIT/SDT/EIT/TDT equivalents
// set a carrier's repetition period, clamped to the active conformance's
// maximum.
func (m *Mux) SetPATInterval(d time.Duration) { m.pat.period = m.clampInterval(d, false) }
func (m *Mux) SetCATInterval(d time.Duration) { m.cat.period = m.clampInterval(d, false) }

// SetNITInterval sets the NIT repetition period; a no-op if the current
// conformance does not carry DVB tables.
func (m *Mux) SetNITInterval(d time.Duration) {
	if m.nit != nil {
		m.nit.period = m.clampInterval(d, false)
	}
}

// SetSDTInterval sets the SDT repetition period.
func (m *Mux) SetSDTInterval(d time.Duration) {
	if m.sdt != nil {
		m.sdt.period = m.clampInterval(d, false)
	}
}

// SetEITInterval sets the EIT repetition period.
func (m *Mux) SetEITInterval(d time.Duration) {
	if m.eit != nil {
		m.eit.period = m.clampInterval(d, false)
	}
}

// SetTDTInterval sets the TDT repetition period.
func (m *Mux) SetTDTInterval(d time.Duration) {
	if m.tdt != nil {
		m.tdt.period = m.clampInterval(d, false)
	}
}

// AddProgram registers a new program, allocating the next free PMT PID
// and marking the PAT dirty so the next tick emits a new version.
func (m *Mux) AddProgram(number uint16) (*Program, error) {
	if _, exists := m.programs[number]; exists {
		return nil, newErr(KindInvalid, "mux.AddProgram", errProgramExists)
	}
	if err := m.reserveSID(number); err != nil {
		return nil, err
	}
	pid := m.nextPMTPID
	for m.reservePID(pid) != nil {
		pid++
	}
	p, err := NewProgram(m.log, number, pid, DefaultPSIPeriod)
	if err != nil {
		return nil, newErr(KindExternal, "mux.AddProgram", err)
	}
	m.nextPMTPID = pid + 1
	m.programs[number] = p
	m.patDirty = true
	return p, nil
}

// reserveSID enforces the invariant that every program number (SID) is
// unique across the mux's programs, with 0 reserved for the NIT entry in
// the PAT.
func (m *Mux) reserveSID(number uint16) error {
	if number == 0 {
		return newErr(KindInvalid, "mux.reserveSID", errReservedSID)
	}
	if _, exists := m.programs[number]; exists {
		return newErr(KindInvalid, "mux.reserveSID", errProgramExists)
	}
	return nil
}

// reservePID enforces the invariant that every PID in the mux -- fixed
// DVB PIDs, PMT PIDs, PCR carriers and automatic elementary-stream
// allocations -- is unique.
func (m *Mux) reservePID(pid uint16) error {
	for _, used := range m.usedPIDs() {
		if used == pid {
			return newErr(KindInvalid, "mux.reservePID", errPIDInUse)
		}
	}
	return nil
}

// usedPIDs returns every PID currently claimed by the mux: fixed PSI/SI
// carriers, PMT PIDs and every program's input PIDs.
func (m *Mux) usedPIDs() []uint16 {
	pids := []uint16{mts.PatPid, mts.CatPid}
	if m.conformance.carriesDVBTables() {
		pids = append(pids, mts.NitPid, mts.SdtPid, mts.EitPid, mts.TdtPid)
	}
	for _, p := range m.programs {
		pids = append(pids, p.PMTPID)
		for _, in := range p.Inputs {
			pids = append(pids, in.Def().PID)
		}
	}
	return pids
}

// RemoveProgram deregisters a program, marking the PAT dirty.
func (m *Mux) RemoveProgram(number uint16) error {
	if _, exists := m.programs[number]; !exists {
		return newErr(KindInvalid, "mux.RemoveProgram", errNoSuchProgram)
	}
	delete(m.programs, number)
	m.patDirty = true
	return nil
}

// Program returns the program registered under number, if any.
func (m *Mux) Program(number uint16) (*Program, bool) {
	p, ok := m.programs[number]
	return p, ok
}

// AddInput attaches a new elementary stream to an existing program,
// applying the program-change policy: the PCR carrier is recomputed
// (video beats audio, ties keep insertion order) and the PMT is marked
// dirty.
func (m *Mux) AddInput(program uint16, def *flow.Definition) (*Input, error) {
	p, ok := m.programs[program]
	if !ok {
		return nil, newErr(KindInvalid, "mux.AddInput", errNoSuchProgram)
	}
	if err := m.reservePID(def.PID); err != nil {
		return nil, err
	}
	m.inferConformance(def)

	in, err := NewInput(m.log, def)
	if err != nil {
		return nil, err
	}
	p.AddInput(in)
	recomputePCRCarrier(p)
	return in, nil
}

// RemoveInput detaches the elementary stream on pid from program,
// recomputing the PCR carrier and marking the PMT dirty.
func (m *Mux) RemoveInput(program, pid uint16) error {
	p, ok := m.programs[program]
	if !ok {
		return newErr(KindInvalid, "mux.RemoveInput", errNoSuchProgram)
	}
	if !p.RemoveInput(pid) {
		return newErr(KindInvalid, "mux.RemoveInput", errNoSuchInput)
	}
	recomputePCRCarrier(p)
	return nil
}

// recomputePCRCarrier selects the program's PCR carrier: the first video
// input in insertion order, falling back to the first audio input, per
// the program-change policy's video-over-audio rule. Inputs of any other
// type never carry the PCR. The program's PCRPID follows the chosen input.
func recomputePCRCarrier(p *Program) {
	var chosen *Input
	for _, in := range p.Inputs {
		in.SetPCRCarrier(false)
		if chosen == nil && in.Def().Type == flow.TypeVideo {
			chosen = in
		}
	}
	if chosen == nil {
		for _, in := range p.Inputs {
			if in.Def().Type == flow.TypeAudio {
				chosen = in
				break
			}
		}
	}
	if chosen != nil {
		chosen.SetPCRCarrier(true)
		p.PCRPID = chosen.Def().PID
	}
	p.MarkDirty()
}

// Tick runs one prepare/splice/aggregate/advance pass at pipeline time
// now and returns exactly one aggregate of OutputSize bytes. Packets are
// drawn from PSI carriers first in ascending PID order, then from
// programs' inputs; a stuffing packet fills any position nothing is
// ready for.
func (m *Mux) Tick(now time.Time) ([]byte, error) {
	m.prepare(now)

	out := make([]byte, 0, m.mtu)
	for len(out) < m.mtu {
		pkt, err := m.spliceOne(now)
		if err != nil {
			return nil, err
		}
		if pkt == nil {
			pkt = m.padding
		}
		out = append(out, pkt...)
	}
	return out, nil
}

// prepare refreshes every due PSI/SI carrier so fresh sections are
// queued ahead of this tick's splice phase. A dirty program's PMT
// carrier is forced due immediately so the version bump goes out on the
// very next tick rather than waiting for its nominal period to elapse.
func (m *Mux) prepare(now time.Time) error {
	for _, p := range m.programs {
		if p.dirty {
			p.PMTCarrier().last = time.Time{}
		}
	}
	for _, c := range m.carriers() {
		if err := c.Refresh(now); err != nil {
			return err
		}
	}
	return nil
}

// carriers returns the mux's currently active PSI/SI carriers -- the
// fixed PAT/CAT/NIT/SDT/EIT/TDT tables plus every program's PMT -- in
// ascending PID order.
func (m *Mux) carriers() []*PsiPid {
	all := []*PsiPid{m.pat, m.cat, m.nit, m.sdt, m.eit, m.tdt}
	out := make([]*PsiPid, 0, len(all)+len(m.programs))
	for _, c := range all {
		if c != nil {
			out = append(out, c)
		}
	}
	for _, p := range m.programs {
		out = append(out, p.PMTCarrier())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pid < out[j].pid })
	return out
}

// spliceOne pulls the next ready TS packet, preferring PSI carriers over
// program inputs per the scheduler's order-of-priority rule.
func (m *Mux) spliceOne(now time.Time) ([]byte, error) {
	for _, c := range m.carriers() {
		b, ok, err := c.Splice(0)
		if err != nil {
			return nil, err
		}
		if ok {
			return b, nil
		}
	}
	for _, num := range m.programNumbers() {
		p := m.programs[num]
		for _, in := range p.Inputs {
			b, ok, err := in.Splice(0)
			if err != nil {
				return nil, err
			}
			if ok {
				return b, nil
			}
		}
	}
	return nil, nil
}

// paddingPacket builds the canonical null packet: PID 0x1FFF, an
// adaptation field with no payload, the whole packet after the header
// filled with stuffing bytes by Packet.Bytes.
func paddingPacket() []byte {
	pkt := mts.Packet{PID: mts.NullPid, AFC: mts.HasAdaptationField}
	return pkt.Bytes(nil)
}
