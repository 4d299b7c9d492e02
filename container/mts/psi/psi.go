/*
NAME
  psi.go

DESCRIPTION
  See Readme.md

AUTHOR
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package psi provides encoding and decoding of MPEG-TS program specific
// information: PAT, PMT, and the private-section table families (NIT, SDT,
// EIT, TDT, CAT) built on top of the same syntax-section/descriptor
// machinery.
package psi

import (
	"errors"
	"fmt"

	gotspsi "github.com/Comcast/gots/v2/psi"
)

// PacketSize of psi (without MPEG-TS header)
const PacketSize = 184

// Lengths of section definitions.
const (
	ESSDataLen  = 5
	DescDefLen  = 2
	PMTDefLen   = 4
	PATEntryLen = 4
	TSSDefLen   = 5
	PSIDefLen   = 3
)

// Table Type IDs.
const (
	PatID      = 0x00
	CatID      = 0x01
	PmtID      = 0x02
	TsdtID     = 0x03
	NitID      = 0x40
	NitOtherID = 0x41
	SdtID      = 0x42
	SdtOtherID = 0x46
	EitID      = 0x4e // actual/present/following; segmented schedule uses 0x50-0x6f
	TdtID      = 0x70
	RstID      = 0x71
	TotID      = 0x73
)

// CRC hash size.
const crcSize = 4

// Consts relating to syntax section.
const (
	TotalSyntaxSecLen = 180
	SyntaxSecLenIdx1  = 2
	SyntaxSecLenIdx2  = 3
	SyntaxSecLenMask1 = 0x03
	SectionLenMask1   = 0x03
)

// Consts relating to program info len.
const (
	ProgramInfoLenIdx1  = 11
	ProgramInfoLenIdx2  = 12
	ProgramInfoLenMask1 = 0x03
)

// DescriptorsIdx is the index that the descriptors start at for a PMT with a
// single program descriptor loop.
const DescriptorsIdx = ProgramInfoLenIdx2 + 1

// NewPATPSI builds a program association table listing the given programs,
// each mapping a program number to the PID of its PMT. An empty or nil
// programs map produces a PAT with no program entries (network PID only is
// not modelled here; NIT discovery is carried by a program number of 0 by
// convention, matching the MPEG-2 systems spec).
func NewPATPSI(transportStreamID uint16, version byte, programs map[uint16]uint16) *PSI {
	pat := &PAT{Entries: make([]PATEntry, 0, len(programs))}
	for prog, pid := range programs {
		pat.Entries = append(pat.Entries, PATEntry{Program: prog, ProgramMapPID: pid})
	}
	return &PSI{
		PointerField:    0x00,
		TableID:         PatID,
		SyntaxIndicator: true,
		PrivateBit:      false,
		SyntaxSection: &SyntaxSection{
			TableIDExt:   transportStreamID,
			Version:      version,
			CurrentNext:  true,
			Section:      0,
			LastSection:  0,
			SpecificData: pat,
		},
	}
}

// NewPMTPSI builds a program mapping table for a single program, with the
// given PCR-carrying PID and elementary stream list. Program-level
// descriptors may be set in the PMT's Descriptors field before the PSI is
// rendered with Bytes, or patched into the rendered bytes afterwards with
// PSIBytes.AddDescriptor.
func NewPMTPSI(program uint16, version byte, pcrPID uint16, streams []StreamSpecificData) *PSI {
	return &PSI{
		PointerField:    0x00,
		TableID:         PmtID,
		SyntaxIndicator: true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:  program,
			Version:     version,
			CurrentNext: true,
			Section:     0,
			LastSection: 0,
			SpecificData: &PMT{
				ProgramClockPID: pcrPID,
				Streams:         streams,
			},
		},
	}
}

type (
	PSIBytes        []byte
	DescriptorBytes []byte
)

// Program specific information
type PSI struct {
	PointerField    byte           // Point field
	PointerFill     []byte         // Pointer filler bytes
	TableID         byte           // Table ID
	SyntaxIndicator bool           // Section syntax indicator (1 for PAT, PMT, CAT)
	PrivateBit      bool           // Private bit (0 for PAT, PMT, CAT)
	SyntaxSection   *SyntaxSection // Table syntax section, required by Bytes; the short-form TDT is built by NewTDT instead
	CRC             uint32         // crc32 of entire table excluding pointer field, pointer filler bytes and the trailing CRC32
}

// Table syntax section
type SyntaxSection struct {
	TableIDExt   uint16       // Table ID extension
	Version      byte         // Version number
	CurrentNext  bool         // Current/next indicator
	Section      byte         // Section number
	LastSection  byte         // Last section number
	SpecificData SpecificData // Specific data: PAT, PMT, or a private-section table
}

// Specific Data, (could be PAT, PMT, or a private-section table)
type SpecificData interface {
	Bytes() []byte
}

// PATEntry is a single program_number -> PID mapping within a PAT.
type PATEntry struct {
	Program       uint16 // Program Number; 0 denotes the network PID entry.
	ProgramMapPID uint16 // Program map PID (or network PID, for entry 0).
}

// PAT is the program association table, implementing SpecificData. A PAT
// carries as many program entries as fit in one section; the spec's mux
// never emits multi-section PATs since a deployment's program count stays
// small enough for a single section.
type PAT struct {
	Entries []PATEntry
}

// PMT is the program mapping table, implementing SpecificData, describing
// every elementary stream belonging to one program.
type PMT struct {
	ProgramClockPID uint16               // Program clock reference PID.
	Descriptors     []Descriptor         // Program-level descriptors.
	Streams         []StreamSpecificData // One entry per elementary stream.
}

// StreamSpecificData describes a single elementary stream entry in a PMT.
type StreamSpecificData struct {
	StreamType  byte         // Stream type.
	PID         uint16       // Elementary PID.
	Descriptors []Descriptor // Elementary stream descriptors.
}

// Descriptor
type Descriptor struct {
	Tag  byte   // Descriptor tag
	Len  byte   // Descriptor length
	Data []byte // Descriptor data
}

// Bytes outputs a byte slice representation of the PSI.
func (p *PSI) Bytes() []byte {
	body := p.SyntaxSection.Bytes()
	sectionLen := len(body) + crcSize
	out := make([]byte, 3)
	out[0] = p.PointerField
	if p.PointerField != 0 {
		panic("No support for pointer filler bytes")
	}
	out[1] = p.TableID
	syntaxBit := byte(0)
	if p.SyntaxIndicator {
		syntaxBit = 0x80
	}
	privateBit := byte(0)
	if p.PrivateBit {
		privateBit = 0x40
	}
	out[2] = syntaxBit | privateBit | 0x30 | (0x03 & byte(sectionLen>>8))
	out = append(out, byte(sectionLen))
	out = append(out, body...)
	out = AddCRC(out)
	return out
}

// Bytes outputs a byte slice representation of the SyntaxSection.
func (t *SyntaxSection) Bytes() []byte {
	out := make([]byte, TSSDefLen)
	out[0] = byte(t.TableIDExt >> 8)
	out[1] = byte(t.TableIDExt)
	out[2] = 0xc0 | (0x3e & (t.Version << 1)) | (0x01 & asByte(t.CurrentNext))
	out[3] = t.Section
	out[4] = t.LastSection
	out = append(out, t.SpecificData.Bytes()...)
	return out
}

// Bytes outputs a byte slice representation of the PAT.
func (p *PAT) Bytes() []byte {
	out := make([]byte, 0, PATEntryLen*len(p.Entries))
	for _, e := range p.Entries {
		var entry [PATEntryLen]byte
		entry[0] = byte(e.Program >> 8)
		entry[1] = byte(e.Program)
		entry[2] = 0xe0 | (0x1f & byte(e.ProgramMapPID>>8))
		entry[3] = byte(e.ProgramMapPID)
		out = append(out, entry[:]...)
	}
	return out
}

// Bytes outputs a byte slice representation of the PMT.
func (p *PMT) Bytes() []byte {
	var progInfo []byte
	for _, d := range p.Descriptors {
		progInfo = append(progInfo, d.Bytes()...)
	}
	out := make([]byte, PMTDefLen)
	out[0] = 0xe0 | (0x1f & byte(p.ProgramClockPID>>8))
	out[1] = byte(p.ProgramClockPID)
	out[2] = 0xf0 | (0x03 & byte(len(progInfo)>>8))
	out[3] = byte(len(progInfo))
	out = append(out, progInfo...)
	for i := range p.Streams {
		out = append(out, p.Streams[i].Bytes()...)
	}
	return out
}

// DecodePAT parses a reassembled PAT table into its program/PMT-PID
// entries. transportStreamID is read from the syntax section's
// table_id_extension.
func DecodePAT(section []byte) (transportStreamID uint16, pat *PAT, err error) {
	const specificDataOffset = 4 + TSSDefLen
	if len(section) < specificDataOffset+crcSize {
		return 0, nil, ErrTruncatedDescriptor
	}
	transportStreamID = uint16(section[4])<<8 | uint16(section[5])
	loop := section[specificDataOffset : len(section)-crcSize]
	pat = &PAT{}
	for i := 0; i+PATEntryLen <= len(loop); i += PATEntryLen {
		pat.Entries = append(pat.Entries, PATEntry{
			Program:       uint16(loop[i])<<8 | uint16(loop[i+1]),
			ProgramMapPID: uint16(loop[i+2]&0x1f)<<8 | uint16(loop[i+3]),
		})
	}
	return transportStreamID, pat, nil
}

// DecodePMT parses a reassembled PMT table into its PCR PID, program
// descriptors and elementary-stream loop. program is read from the
// syntax section's table_id_extension.
func DecodePMT(section []byte) (program uint16, pmt *PMT, err error) {
	const specificDataOffset = 4 + TSSDefLen
	if len(section) < specificDataOffset+PMTDefLen+crcSize {
		return 0, nil, ErrTruncatedDescriptor
	}
	program = uint16(section[4])<<8 | uint16(section[5])
	body := section[specificDataOffset : len(section)-crcSize]

	pcrPID := uint16(body[0]&0x1f)<<8 | uint16(body[1])
	progInfoLen := int(body[2]&0x03)<<8 | int(body[3])
	if PMTDefLen+progInfoLen > len(body) {
		return 0, nil, ErrTruncatedDescriptor
	}
	progDescs, err := ParseDescriptors(body[PMTDefLen : PMTDefLen+progInfoLen])
	if err != nil {
		return 0, nil, err
	}
	pmt = &PMT{ProgramClockPID: pcrPID, Descriptors: progDescs}

	loop := body[PMTDefLen+progInfoLen:]
	for i := 0; i+ESSDataLen <= len(loop); {
		streamType := loop[i]
		pid := uint16(loop[i+1]&0x1f)<<8 | uint16(loop[i+2])
		esInfoLen := int(loop[i+3]&0x03)<<8 | int(loop[i+4])
		i += ESSDataLen
		if i+esInfoLen > len(loop) {
			return 0, nil, ErrTruncatedDescriptor
		}
		esDescs, err := ParseDescriptors(loop[i : i+esInfoLen])
		if err != nil {
			return 0, nil, err
		}
		pmt.Streams = append(pmt.Streams, StreamSpecificData{
			StreamType:  streamType,
			PID:         pid,
			Descriptors: esDescs,
		})
		i += esInfoLen
	}
	return program, pmt, nil
}

// Bytes outputs a byte slice representation of the Descriptor.
func (d *Descriptor) Bytes() []byte {
	out := make([]byte, DescDefLen)
	out[0] = d.Tag
	out[1] = d.Len
	out = append(out, d.Data...)
	return out
}

// Bytes outputs a byte slice representation of the StreamSpecificData.
func (e *StreamSpecificData) Bytes() []byte {
	var info []byte
	for _, d := range e.Descriptors {
		info = append(info, d.Bytes()...)
	}
	out := make([]byte, ESSDataLen)
	out[0] = e.StreamType
	out[1] = 0xe0 | (0x1f & byte(e.PID>>8))
	out[2] = byte(e.PID)
	out[3] = 0xf0 | (0x03 & byte(len(info)>>8))
	out[4] = byte(len(info))
	out = append(out, info...)
	return out
}

func asByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// AddDescriptor adds or updates a program-level descriptor in a raw PMT
// section given a descriptor tag and data. If the psi is not a PMT, an
// error is returned. If a descriptor with the given tag is not found,
// room is made and a descriptor with the given tag and data is created. If
// found, the descriptor is resized as required and the new data copied in.
func (p *PSIBytes) AddDescriptor(tag int, data []byte) error {
	if gotspsi.TableID(*p) != PmtID {
		return errors.New("trying to add descriptor, but not pmt")
	}

	i, desc := p.HasDescriptor(tag)
	if desc == nil {
		err := p.createDescriptor(tag, data)
		if err != nil {
			return fmt.Errorf("could not create descriptor: %w", err)
		}
		return err
	}

	oldDescLen := desc.len()
	oldDataLen := int(desc[1])
	newDataLen := len(data)
	newDescLen := 2 + newDataLen
	delta := newDescLen - oldDescLen

	// If the old data length is more than the new data length, we need shift data
	// after descriptor up, and then trim the psi. If the oldDataLen is less than
	// new data then we need reseize psi and shift data down. If same do nothing.
	switch {
	case oldDataLen > newDataLen:
		copy((*p)[i+newDescLen:], (*p)[i+oldDescLen:])
		*p = (*p)[:len(*p)+delta]
	case oldDataLen < newDataLen:
		tmp := make([]byte, len(*p)+delta)
		copy(tmp, *p)
		*p = tmp
		copy((*p)[i+newDescLen:], (*p)[i+oldDescLen:])
	}

	// Copy in new data
	(*p)[i+1] = byte(newDataLen)
	copy((*p)[i+2:], data)

	newProgInfoLen := p.ProgramInfoLen() + delta
	p.setProgInfoLen(newProgInfoLen)
	newSectionLen := int(gotspsi.SectionLength(*p)) + delta
	p.setSectionLen(newSectionLen)
	UpdateCrc((*p)[1:])
	return nil
}

// HasDescriptor checks if a descriptor of the given tag exists in a raw PMT
// section's program info loop. If found, the index and DescriptorBytes are
// returned; otherwise -1 and nil.
func (p *PSIBytes) HasDescriptor(tag int) (int, DescriptorBytes) {
	descs := p.descriptors()
	if descs == nil {
		return -1, nil
	}
	for i := 0; i < len(descs); i += 2 + int(descs[i+1]) {
		if int(descs[i]) == tag {
			return i + DescriptorsIdx, descs[i : i+2+int(descs[i+1])]
		}
	}
	return -1, nil
}

// createDescriptor creates a descriptor in a psi given a tag and data. It does so
// by resizing the psi, shifting existing data down and copying in new descriptor
// in new space.
func (p *PSIBytes) createDescriptor(tag int, data []byte) error {
	curProgLen := p.ProgramInfoLen()
	oldSyntaxSectionLen := SyntaxSecLenFrom(*p)
	if TotalSyntaxSecLen-(int(oldSyntaxSectionLen)+2+len(data)) <= 0 {
		return errors.New("not enough space in psi to create descriptor")
	}
	dataLen := len(data)
	newDescIdx := DescriptorsIdx + curProgLen
	newDescLen := dataLen + 2

	// Increase size of psi and copy data down to make room for new descriptor.
	tmp := make([]byte, len(*p)+newDescLen)
	copy(tmp, *p)
	*p = tmp
	copy((*p)[newDescIdx+newDescLen:], (*p)[newDescIdx:])
	// Set the tag, data len and data of the new desriptor.
	(*p)[newDescIdx] = byte(tag)
	(*p)[newDescIdx+1] = byte(dataLen)
	copy((*p)[newDescIdx+2:newDescIdx+2+dataLen], data)

	// Set length fields and update the psi CRC.
	addedLen := dataLen + 2
	newProgInfoLen := curProgLen + addedLen
	p.setProgInfoLen(newProgInfoLen)
	newSyntaxSectionLen := int(oldSyntaxSectionLen) + addedLen
	p.setSectionLen(newSyntaxSectionLen)
	UpdateCrc((*p)[1:])

	return nil
}

// setProgInfoLen sets the program information length in a psi with a pmt.
func (p *PSIBytes) setProgInfoLen(l int) {
	(*p)[ProgramInfoLenIdx1] &= 0xff ^ ProgramInfoLenMask1
	(*p)[ProgramInfoLenIdx1] |= byte(l>>8) & ProgramInfoLenMask1
	(*p)[ProgramInfoLenIdx2] = byte(l)
}

// setSectionLen sets section length in a psi.
func (p *PSIBytes) setSectionLen(l int) {
	(*p)[SyntaxSecLenIdx1] &= 0xff ^ SyntaxSecLenMask1
	(*p)[SyntaxSecLenIdx1] |= byte(l>>8) & SyntaxSecLenMask1
	(*p)[SyntaxSecLenIdx2] = byte(l)
}

// descriptors returns the program-info descriptor loop of a raw PMT section.
func (p *PSIBytes) descriptors() []byte {
	return (*p)[DescriptorsIdx : DescriptorsIdx+p.ProgramInfoLen()]
}

// len returns the length of a descriptor in bytes.
func (d *DescriptorBytes) len() int {
	return int(2 + (*d)[1])
}

// ProgramInfoLen returns the program info length of a raw PMT section.
func (p *PSIBytes) ProgramInfoLen() int {
	return int((((*p)[ProgramInfoLenIdx1] & ProgramInfoLenMask1) << 8) | (*p)[ProgramInfoLenIdx2])
}

// SyntaxSecLenFrom returns the section_length field of a raw PSI section.
func SyntaxSecLenFrom(p []byte) uint16 {
	return uint16(p[SyntaxSecLenIdx1]&SyntaxSecLenMask1)<<8 | uint16(p[SyntaxSecLenIdx2])
}
