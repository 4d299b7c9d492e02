/*
NAME
  scte35.go

DESCRIPTION
  scte35.go encodes and decodes SCTE-35 splice_info_section tables
  (table_id 0xFC), the private-section mechanism used to signal ad
  insertion and other programme splice points inline in a transport
  stream. Only splice_null, splice_insert and time_signal commands plus
  segmentation_descriptor are modelled.

  Normative reference: ANSI/SCTE 35.

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

import (
	"errors"
	"fmt"
)

// Scte35TableID is the table_id of an SCTE-35 splice_info_section.
const Scte35TableID = 0xfc

// Splice command types.
const (
	SpliceNullType      uint32 = 0x00
	SpliceInsertType    uint32 = 0x05
	TimeSignalType       uint32 = 0x06
)

// SegmentationDescriptorTag is the splice_descriptor_tag for a
// segmentation_descriptor.
const SegmentationDescriptorTag = 0x02

// ErrUnsupportedSpliceCommand is returned for a splice_command_type this
// package does not know how to decode.
var ErrUnsupportedSpliceCommand = errors.New("psi: unsupported splice command type")

// SpliceCommand is implemented by the splice command payloads this package
// supports.
type SpliceCommand interface {
	Type() uint32
	Bytes() []byte
}

// SpliceNull is the splice_null() command: no payload, used as a heartbeat.
type SpliceNull struct{}

func (SpliceNull) Type() uint32   { return SpliceNullType }
func (SpliceNull) Bytes() []byte { return nil }

// SpliceTime carries an optional PTS time (33-bit).
type SpliceTime struct {
	PTS   uint64
	HasPTS bool
}

func (t SpliceTime) bytes() []byte {
	if !t.HasPTS {
		return []byte{0x7f}
	}
	b := make([]byte, 5)
	b[0] = 0x80 | byte((t.PTS>>32)&0x01)
	b[1] = byte(t.PTS >> 24)
	b[2] = byte(t.PTS >> 16)
	b[3] = byte(t.PTS >> 8)
	b[4] = byte(t.PTS)
	return b
}

func decodeSpliceTime(b []byte) (SpliceTime, int) {
	if len(b) == 0 {
		return SpliceTime{}, 0
	}
	if b[0]&0x80 == 0 {
		return SpliceTime{}, 1
	}
	pts := uint64(b[0]&0x01)<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
	return SpliceTime{PTS: pts, HasPTS: true}, 5
}

// BreakDuration specifies the duration of a commercial break.
type BreakDuration struct {
	AutoReturn bool
	Duration   uint64 // 33-bit, in 90kHz ticks.
}

// SpliceInsert is the splice_insert() command.
type SpliceInsert struct {
	EventID            uint32
	OutOfNetwork       bool
	ProgramSpliceFlag  bool
	SpliceImmediate    bool
	SpliceTime         SpliceTime
	HasDuration        bool
	Duration           BreakDuration
	UniqueProgramID    uint16
	AvailNum           byte
	AvailsExpected     byte
}

func (SpliceInsert) Type() uint32 { return SpliceInsertType }

// Bytes outputs a byte slice representation of the SpliceInsert.
func (s SpliceInsert) Bytes() []byte {
	out := make([]byte, 4)
	out[0] = byte(s.EventID >> 24)
	out[1] = byte(s.EventID >> 16)
	out[2] = byte(s.EventID >> 8)
	out[3] = byte(s.EventID)

	flags := byte(0x7f) // reserved bits set, splice_event_cancel_indicator=0
	if s.OutOfNetwork {
		flags |= 0x80
	}
	out = append(out, flags)

	b1 := byte(0x3f)
	if s.ProgramSpliceFlag {
		b1 |= 0x80
	}
	if s.HasDuration {
		b1 |= 0x40
	}
	if s.SpliceImmediate {
		b1 |= 0x20
	}
	out = append(out, b1)

	if s.ProgramSpliceFlag && !s.SpliceImmediate {
		out = append(out, s.SpliceTime.bytes()...)
	}
	if s.HasDuration {
		b := make([]byte, 5)
		if s.Duration.AutoReturn {
			b[0] = 0x80
		}
		b[0] |= 0x7e | byte((s.Duration.Duration>>32)&0x01)
		b[1] = byte(s.Duration.Duration >> 24)
		b[2] = byte(s.Duration.Duration >> 16)
		b[3] = byte(s.Duration.Duration >> 8)
		b[4] = byte(s.Duration.Duration)
		out = append(out, b...)
	}

	tail := make([]byte, 5)
	tail[0] = byte(s.UniqueProgramID >> 8)
	tail[1] = byte(s.UniqueProgramID)
	tail[2] = s.AvailNum
	tail[3] = s.AvailsExpected
	tail[4] = 0
	out = append(out, tail[:4]...)
	return out
}

// TimeSignal is the time_signal() command.
type TimeSignal struct {
	SpliceTime SpliceTime
}

func (TimeSignal) Type() uint32 { return TimeSignalType }

// Bytes outputs a byte slice representation of the TimeSignal.
func (t TimeSignal) Bytes() []byte {
	return t.SpliceTime.bytes()
}

// SegmentationDescriptor is a splice_descriptor carrying segmentation
// boundary metadata (content identifiers, segment type).
type SegmentationDescriptor struct {
	EventID        uint32
	EventCancelled bool
	SegmentationTypeID byte
	SegmentNum     byte
	SegmentsExpected byte
}

// Bytes outputs a splice_descriptor-wrapped byte slice representation of
// the SegmentationDescriptor, including the leading splice_descriptor_tag,
// length, and "CUEI" identifier.
func (s SegmentationDescriptor) Bytes() []byte {
	body := make([]byte, 5)
	body[0] = byte(s.EventID >> 24)
	body[1] = byte(s.EventID >> 16)
	body[2] = byte(s.EventID >> 8)
	body[3] = byte(s.EventID)
	if s.EventCancelled {
		body[4] = 0xff
		out := make([]byte, 0, 2+4+len(body))
		out = append(out, SegmentationDescriptorTag, byte(4+len(body)))
		out = append(out, 'C', 'U', 'E', 'I')
		out = append(out, body...)
		return out
	}
	body[4] = 0x7f // program_segmentation_flag, no duration, no delivery restrictions

	tail := []byte{0x01, 0x02, s.SegmentationTypeID, s.SegmentNum, s.SegmentsExpected}
	out := make([]byte, 0, 2+4+len(body)+len(tail))
	out = append(out, SegmentationDescriptorTag, byte(4+len(body)+len(tail)))
	out = append(out, 'C', 'U', 'E', 'I')
	out = append(out, body...)
	out = append(out, tail...)
	return out
}

// SpliceInfoSection is the SCTE-35 splice_info_section. Unlike PAT/PMT/SI
// tables it carries no table_id_extension or version/current_next fields,
// so it is encoded directly rather than through the generic PSI/
// SyntaxSection machinery.
type SpliceInfoSection struct {
	PTSAdjustment uint64 // 33-bit
	Tier          uint16 // 12-bit
	Command       SpliceCommand
	Descriptors   [][]byte // raw splice_descriptor() entries, e.g. SegmentationDescriptor.Bytes()
}

// Bytes outputs the full wire representation of the SpliceInfoSection,
// including the pointer field, table header, section_length and trailing
// CRC.
func (s *SpliceInfoSection) Bytes() []byte {
	cmd := s.Command.Bytes()

	body := make([]byte, 2) // protocol_version, encrypted_packet+encryption_algorithm
	pts := make([]byte, 5)
	pts[0] = byte((s.PTSAdjustment >> 32) & 0x01)
	pts[1] = byte(s.PTSAdjustment >> 24)
	pts[2] = byte(s.PTSAdjustment >> 16)
	pts[3] = byte(s.PTSAdjustment >> 8)
	pts[4] = byte(s.PTSAdjustment)
	body = append(body, pts...)
	body = append(body, 0x00) // cw_index
	body = append(body, byte(s.Tier>>4), byte(s.Tier<<4)&0xf0)

	cmdLen := len(cmd)
	body = append(body, byte(cmdLen>>8), byte(cmdLen), byte(s.Command.Type()))
	body = append(body, cmd...)

	var descLoop []byte
	for _, d := range s.Descriptors {
		descLoop = append(descLoop, d...)
	}
	body = append(body, byte(len(descLoop)>>8), byte(len(descLoop)))
	body = append(body, descLoop...)

	sectionLen := len(body) + crcSize
	out := make([]byte, 4)
	out[0] = 0x00 // pointer field
	out[1] = Scte35TableID
	out[2] = 0x70 | (0x03 & byte(sectionLen>>8))
	out[3] = byte(sectionLen)
	out = append(out, body...)
	return AddCRC(out)
}

// NewSCTE35 builds a SpliceInfoSection wrapping the given command and
// descriptors.
func NewSCTE35(command SpliceCommand, descriptors [][]byte) *SpliceInfoSection {
	return &SpliceInfoSection{Command: command, Descriptors: descriptors}
}

// DecodeSCTE35 parses a raw splice_info_section (pointer field stripped)
// into its command and descriptor list.
func DecodeSCTE35(section []byte) (*SpliceInfoSection, error) {
	if len(section) < 14+crcSize {
		return nil, ErrTruncatedDescriptor
	}
	if !VerifyCRC(section) {
		return nil, errors.New("psi: invalid SCTE-35 CRC")
	}
	if section[0] != Scte35TableID {
		return nil, fmt.Errorf("psi: not an SCTE-35 section (table_id 0x%02x)", section[0])
	}
	ptsAdjustment := uint64(section[3]&0x01)<<32 | uint64(section[4])<<24 | uint64(section[5])<<16 | uint64(section[6])<<8 | uint64(section[7])
	tier := uint16(section[9])<<4 | uint16(section[10]>>4)
	cmdLen := int(section[10]&0x0f)<<8 | int(section[11])
	cmdType := uint32(section[12])
	cmdStart := 13
	if cmdStart+cmdLen > len(section) {
		return nil, ErrTruncatedDescriptor
	}
	cmdData := section[cmdStart : cmdStart+cmdLen]

	var cmd SpliceCommand
	switch cmdType {
	case SpliceNullType:
		cmd = SpliceNull{}
	case TimeSignalType:
		st, _ := decodeSpliceTime(cmdData)
		cmd = TimeSignal{SpliceTime: st}
	case SpliceInsertType:
		si, err := decodeSpliceInsert(cmdData)
		if err != nil {
			return nil, err
		}
		cmd = si
	default:
		return nil, ErrUnsupportedSpliceCommand
	}

	rest := section[cmdStart+cmdLen:]
	if len(rest) < 2 {
		return nil, ErrTruncatedDescriptor
	}
	descLoopLen := int(rest[0])<<8 | int(rest[1])
	if 2+descLoopLen > len(rest) {
		return nil, ErrTruncatedDescriptor
	}
	descLoop := rest[2 : 2+descLoopLen]

	var descs [][]byte
	for i := 0; i+2 <= len(descLoop); {
		l := int(descLoop[i+1])
		if i+2+l > len(descLoop) {
			return nil, ErrTruncatedDescriptor
		}
		descs = append(descs, append([]byte(nil), descLoop[i:i+2+l]...))
		i += 2 + l
	}

	return &SpliceInfoSection{PTSAdjustment: ptsAdjustment, Tier: tier, Command: cmd, Descriptors: descs}, nil
}

func decodeSpliceInsert(b []byte) (SpliceInsert, error) {
	if len(b) < 5 {
		return SpliceInsert{}, ErrTruncatedDescriptor
	}
	si := SpliceInsert{
		EventID:      uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
		OutOfNetwork: b[4]&0x80 != 0,
	}
	if len(b) < 6 {
		return si, nil
	}
	si.ProgramSpliceFlag = b[5]&0x80 != 0
	si.HasDuration = b[5]&0x40 != 0
	si.SpliceImmediate = b[5]&0x20 != 0
	i := 6
	if si.ProgramSpliceFlag && !si.SpliceImmediate {
		st, n := decodeSpliceTime(b[i:])
		si.SpliceTime = st
		i += n
	}
	if si.HasDuration && i+5 <= len(b) {
		si.Duration.AutoReturn = b[i]&0x80 != 0
		si.Duration.Duration = uint64(b[i]&0x01)<<32 | uint64(b[i+1])<<24 | uint64(b[i+2])<<16 | uint64(b[i+3])<<8 | uint64(b[i+4])
		i += 5
	}
	if i+4 <= len(b) {
		si.UniqueProgramID = uint16(b[i])<<8 | uint16(b[i+1])
		si.AvailNum = b[i+2]
		si.AvailsExpected = b[i+3]
	}
	return si, nil
}
