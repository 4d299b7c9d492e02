/*
NAME
  eit.go

DESCRIPTION
  eit.go encodes and decodes the event information table (EIT): present/
  following and schedule variants, both actual and other transport stream,
  each carrying one program's event list with start time, duration and
  descriptive text.

  Normative reference: ETSI EN 300 468 section 5.2.4.

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

import "time"

// EITVariant selects which of the four EIT table_id ranges a section
// belongs to.
type EITVariant int

const (
	EITPresentFollowingActual EITVariant = iota
	EITPresentFollowingOther
	EITScheduleActual // table_id 0x50-0x5f
	EITScheduleOther  // table_id 0x60-0x6f
)

// TableID returns the EIT table_id byte for this variant's first segment.
func (v EITVariant) TableID() byte {
	switch v {
	case EITPresentFollowingActual:
		return EitID
	case EITPresentFollowingOther:
		return 0x4f
	case EITScheduleActual:
		return 0x50
	default:
		return 0x60
	}
}

// EventEntry is a single scheduled or present/following event.
type EventEntry struct {
	EventID       uint16
	StartTime     time.Time
	Duration      time.Duration
	RunningStatus byte
	FreeCA        bool
	Descriptors   []Descriptor
}

// EIT is the event information table specific data, implementing
// SpecificData.
type EIT struct {
	TransportStreamID       uint16
	OriginalNetworkID       uint16
	SegmentLastSectionNumber byte
	LastTableID             byte
	Events                  []EventEntry
}

// NewEITPSI builds an EIT section for one service (program). serviceID is
// carried as the table_id_extension. section/lastSection/segmentLast
// address one section of a possibly multi-section schedule table; the
// caller is responsible for splitting a service's full event list across
// sections that each fit within the section size limit.
func NewEITPSI(serviceID uint16, version byte, section, lastSection byte, variant EITVariant, eit *EIT) *PSI {
	eit.SegmentLastSectionNumber = eit.segmentLastOrDefault(lastSection)
	return &PSI{
		TableID:         variant.TableID(),
		SyntaxIndicator: true,
		PrivateBit:      true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:   serviceID,
			Version:      version,
			CurrentNext:  true,
			Section:      section,
			LastSection:  lastSection,
			SpecificData: eit,
		},
	}
}

func (e *EIT) segmentLastOrDefault(lastSection byte) byte {
	if e.SegmentLastSectionNumber != 0 {
		return e.SegmentLastSectionNumber
	}
	return lastSection
}

// Bytes outputs a byte slice representation of the EIT.
func (e *EIT) Bytes() []byte {
	out := make([]byte, 6)
	out[0] = byte(e.TransportStreamID >> 8)
	out[1] = byte(e.TransportStreamID)
	out[2] = byte(e.OriginalNetworkID >> 8)
	out[3] = byte(e.OriginalNetworkID)
	out[4] = e.SegmentLastSectionNumber
	out[5] = e.LastTableID

	for _, ev := range e.Events {
		var descs []byte
		for _, d := range ev.Descriptors {
			descs = append(descs, d.Bytes()...)
		}
		mjd, bcdStart := toMJDBCD(ev.StartTime.UTC())
		bcdDur := durationToBCD(ev.Duration)
		freeCA := byte(0)
		if ev.FreeCA {
			freeCA = 0x10
		}
		hdr := make([]byte, 12)
		hdr[0] = byte(ev.EventID >> 8)
		hdr[1] = byte(ev.EventID)
		hdr[2] = byte(mjd >> 8)
		hdr[3] = byte(mjd)
		hdr[4], hdr[5], hdr[6] = bcdStart[0], bcdStart[1], bcdStart[2]
		hdr[7], hdr[8], hdr[9] = bcdDur[0], bcdDur[1], bcdDur[2]
		hdr[10] = (ev.RunningStatus << 5) | freeCA | (0x03 & byte(len(descs)>>8))
		hdr[11] = byte(len(descs))
		out = append(out, hdr...)
		out = append(out, descs...)
	}
	return out
}

func durationToBCD(d time.Duration) [3]byte {
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return [3]byte{toBCD(byte(h)), toBCD(byte(m)), toBCD(byte(s))}
}

func bcdToDuration(b [3]byte) time.Duration {
	h := fromBCD(b[0])
	m := fromBCD(b[1])
	s := fromBCD(b[2])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// DecodeEIT parses a reassembled EIT table into its specific data.
func DecodeEIT(section []byte) (*EIT, error) {
	const specificDataOffset = 4 + TSSDefLen
	if len(section) < specificDataOffset+6+crcSize {
		return nil, ErrTruncatedDescriptor
	}
	body := section[specificDataOffset:]
	eit := &EIT{
		TransportStreamID:       uint16(body[0])<<8 | uint16(body[1]),
		OriginalNetworkID:       uint16(body[2])<<8 | uint16(body[3]),
		SegmentLastSectionNumber: body[4],
		LastTableID:             body[5],
	}
	loop := body[6:]
	for i := 0; i+12 <= len(loop); {
		eventID := uint16(loop[i])<<8 | uint16(loop[i+1])
		mjd := uint16(loop[i+2])<<8 | uint16(loop[i+3])
		start := fromMJDBCD(mjd, [3]byte{loop[i+4], loop[i+5], loop[i+6]})
		dur := bcdToDuration([3]byte{loop[i+7], loop[i+8], loop[i+9]})
		running := (loop[i+10] >> 5) & 0x07
		freeCA := loop[i+10]&0x10 != 0
		dLen := int(loop[i+10]&0x03)<<8 | int(loop[i+11])
		i += 12
		if i+dLen > len(loop) {
			return nil, ErrTruncatedDescriptor
		}
		descs, err := ParseDescriptors(loop[i : i+dLen])
		if err != nil {
			return nil, err
		}
		eit.Events = append(eit.Events, EventEntry{
			EventID:       eventID,
			StartTime:     start,
			Duration:      dur,
			RunningStatus: running,
			FreeCA:        freeCA,
			Descriptors:   descs,
		})
		i += dLen
	}
	return eit, nil
}
