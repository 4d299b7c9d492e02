/*
NAME
  decoder.go

DESCRIPTION
  decoder.go provides Decoder, a generic sink pipe that feeds sections of
  one PSI/SI table family into an Assembler and, on every genuine commit,
  decodes the reassembled table and publishes a new flow.Definition
  describing it. TDT is excluded from this pattern: it is a short-form
  table with no syntax section, CRC, or multi-section framing, and is
  decoded directly with DecodeTDT.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "github.com/ausocean/tsmux/flow"

// Decoder reassembles sections belonging to one PID into complete tables of
// type T and publishes a flow.Definition each time a new table commits.
// Its zero value is not ready to use; construct with NewDecoder.
type Decoder[T any] struct {
	pid     uint16
	eitHole bool
	decode  func(section []byte) (T, error)
	build   func(T) *flow.Definition
	asm     Assembler
	last    T
	have    bool
}

// NewDecoder returns a Decoder for the table family identified by decode,
// publishing definitions built by build. eitHole should be true only for
// the EIT schedule table family, applying its tolerant segment-hole
// completion rule.
func NewDecoder[T any](pid uint16, eitHole bool, decode func([]byte) (T, error), build func(T) *flow.Definition) *Decoder[T] {
	return &Decoder[T]{pid: pid, eitHole: eitHole, decode: decode, build: build}
}

// PID returns the PID this decoder assembles sections from.
func (d *Decoder[T]) PID() uint16 { return d.pid }

// Feed presents one raw section to the decoder's Assembler. It returns a
// newly built flow.Definition when the section completes a table that
// differs from the last one decoded, nil otherwise. A decode failure on an
// otherwise-complete table resets the assembler and returns a nil
// definition alongside the error.
func (d *Decoder[T]) Feed(section []byte) (*flow.Definition, error) {
	if !d.asm.Section(section, d.eitHole) {
		return nil, nil
	}
	table, err := d.decode(d.asm.Table())
	if err != nil {
		d.asm.Reset()
		return nil, err
	}
	d.last = table
	d.have = true
	return d.build(table), nil
}

// Last returns the most recently decoded table and whether one has been
// decoded yet.
func (d *Decoder[T]) Last() (t T, ok bool) {
	return d.last, d.have
}

// NewPATDecoder returns a Decoder publishing a flow.Definition per PAT
// entry is not meaningful (a PAT has no single PID/rate of its own), so
// callers needing per-program PMT PIDs should use Last directly; build is
// given a definition with Def set to flow.DefPSI and RawDef empty, useful
// only as a change-notification signal.
func NewPATDecoder(pid uint16) *Decoder[*PAT] {
	return NewDecoder(pid, false,
		func(section []byte) (*PAT, error) {
			_, pat, err := DecodePAT(section)
			return pat, err
		},
		func(*PAT) *flow.Definition {
			return &flow.Definition{Def: flow.DefPSI, PID: pid, Type: flow.TypeOther}
		},
	)
}

// NewPMTDecoder returns a Decoder publishing a flow.Definition per PMT
// commit, tagged with the decoder's own (PMT) PID as the definition's PID.
func NewPMTDecoder(pid uint16) *Decoder[*PMT] {
	return NewDecoder(pid, false,
		func(section []byte) (*PMT, error) {
			_, pmt, err := DecodePMT(section)
			return pmt, err
		},
		func(pmt *PMT) *flow.Definition {
			var descs [][]byte
			for _, desc := range pmt.Descriptors {
				descs = append(descs, desc.Bytes())
			}
			return &flow.Definition{
				Def:         flow.DefPSI,
				PID:         pid,
				Type:        flow.TypeOther,
				Descriptors: descs,
			}
		},
	)
}

// NewCATDecoder returns a Decoder publishing a flow.Definition per CAT
// commit.
func NewCATDecoder(pid uint16) *Decoder[*CAT] {
	return NewDecoder(pid, false, DecodeCAT, func(*CAT) *flow.Definition {
		return &flow.Definition{Def: flow.DefPSI, PID: pid, Type: flow.TypeOther}
	})
}

// NewNITDecoder returns a Decoder publishing a flow.Definition per NIT
// commit.
func NewNITDecoder(pid uint16) *Decoder[*NIT] {
	return NewDecoder(pid, false, DecodeNIT, func(*NIT) *flow.Definition {
		return &flow.Definition{Def: flow.DefPSI, PID: pid, Type: flow.TypeOther}
	})
}

// NewSDTDecoder returns a Decoder publishing a flow.Definition per SDT
// commit.
func NewSDTDecoder(pid uint16) *Decoder[*SDT] {
	return NewDecoder(pid, false, DecodeSDT, func(*SDT) *flow.Definition {
		return &flow.Definition{Def: flow.DefPSI, PID: pid, Type: flow.TypeOther}
	})
}

// NewEITDecoder returns a Decoder publishing a flow.Definition per EIT
// commit, applying the segment-hole tolerant completion rule.
func NewEITDecoder(pid uint16) *Decoder[*EIT] {
	return NewDecoder(pid, true, DecodeEIT, func(*EIT) *flow.Definition {
		return &flow.Definition{Def: flow.DefPSI, PID: pid, Type: flow.TypeOther}
	})
}
