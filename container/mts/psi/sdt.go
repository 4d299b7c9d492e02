/*
NAME
  sdt.go

DESCRIPTION
  sdt.go encodes and decodes the service description table (SDT), listing
  the services (programs) present on this and other transport streams of
  the same network, with EIT presence flags and running status.

  Normative reference: ETSI EN 300 468 section 5.2.3.

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

// RunningStatus values for a service entry, per EN 300 468 table 6.
const (
	RunningUndefined byte = iota
	RunningNotRunning
	RunningStartsShortly
	RunningPausing
	RunningRunning
	RunningOffAir
)

// ServiceEntry is a single service's metadata within an SDT.
type ServiceEntry struct {
	ServiceID       uint16
	EITSchedule     bool
	EITPresentFollowing bool
	RunningStatus   byte
	FreeCA          bool
	Descriptors     []Descriptor
}

// SDT is the service description table specific data, implementing
// SpecificData.
type SDT struct {
	OriginalNetworkID uint16
	Services          []ServiceEntry
}

// NewSDTPSI builds an SDT section for the given transport stream.
// actualTransportStream selects table_id 0x42 (this transport stream) vs
// 0x46 (a different transport stream's SDT, relayed rather than built
// locally, modelled here for completeness).
func NewSDTPSI(transportStreamID uint16, version byte, actualTransportStream bool, sdt *SDT) *PSI {
	tableID := byte(SdtID)
	if !actualTransportStream {
		tableID = SdtOtherID
	}
	return &PSI{
		TableID:         tableID,
		SyntaxIndicator: true,
		PrivateBit:      true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:   transportStreamID,
			Version:      version,
			CurrentNext:  true,
			SpecificData: sdt,
		},
	}
}

// Bytes outputs a byte slice representation of the SDT, including the
// reserved_future_use + original_network_id header and per-service loop.
func (s *SDT) Bytes() []byte {
	out := make([]byte, 3)
	out[0] = byte(s.OriginalNetworkID >> 8)
	out[1] = byte(s.OriginalNetworkID)
	out[2] = 0xff // reserved_future_use

	for _, svc := range s.Services {
		var descs []byte
		for _, d := range svc.Descriptors {
			descs = append(descs, d.Bytes()...)
		}
		var hdr [5]byte
		hdr[0] = byte(svc.ServiceID >> 8)
		hdr[1] = byte(svc.ServiceID)
		hdr[2] = 0xfc | asByte(svc.EITSchedule)<<1 | asByte(svc.EITPresentFollowing)
		freeCA := byte(0)
		if svc.FreeCA {
			freeCA = 0x10
		}
		hdr[3] = (svc.RunningStatus << 5) | freeCA | (0x03 & byte(len(descs)>>8))
		hdr[4] = byte(len(descs))
		out = append(out, hdr[:]...)
		out = append(out, descs...)
	}
	return out
}

// DecodeSDT parses a reassembled SDT table into its specific data.
func DecodeSDT(section []byte) (*SDT, error) {
	const specificDataOffset = 4 + TSSDefLen
	if len(section) < specificDataOffset+3+crcSize {
		return nil, ErrTruncatedDescriptor
	}
	body := section[specificDataOffset:]
	onID := uint16(body[0])<<8 | uint16(body[1])
	loop := body[3:]

	var services []ServiceEntry
	for i := 0; i+5 <= len(loop); {
		svcID := uint16(loop[i])<<8 | uint16(loop[i+1])
		eitSched := loop[i+2]&0x02 != 0
		eitPF := loop[i+2]&0x01 != 0
		running := (loop[i+3] >> 5) & 0x07
		freeCA := loop[i+3]&0x10 != 0
		dLen := int(loop[i+3]&0x03)<<8 | int(loop[i+4])
		i += 5
		if i+dLen > len(loop) {
			return nil, ErrTruncatedDescriptor
		}
		descs, err := ParseDescriptors(loop[i : i+dLen])
		if err != nil {
			return nil, err
		}
		services = append(services, ServiceEntry{
			ServiceID:           svcID,
			EITSchedule:         eitSched,
			EITPresentFollowing: eitPF,
			RunningStatus:       running,
			FreeCA:              freeCA,
			Descriptors:         descs,
		})
		i += dLen
	}
	return &SDT{OriginalNetworkID: onID, Services: services}, nil
}
