/*
NAME
  nit.go

DESCRIPTION
  nit.go encodes and decodes the network information table (NIT), which
  carries the network_name_descriptor and per-transport-stream descriptor
  loops used by receivers to build a channel list across transport streams.

  Normative reference: ETSI EN 300 468 section 5.2.1.

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

// TransportStreamEntry is a single transport stream's descriptor loop
// within a NIT.
type TransportStreamEntry struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Descriptors       []Descriptor
}

// NIT is the network information table specific data, implementing
// SpecificData.
type NIT struct {
	NetworkDescriptors []Descriptor
	Streams            []TransportStreamEntry
}

// NewNITPSI builds a NIT section. actualNetwork selects table_id 0x40 (the
// network the mux itself belongs to) vs 0x41 (a different network's NIT
// relayed verbatim, not something this mux constructs itself but modelled
// for completeness).
func NewNITPSI(networkID uint16, version byte, actualNetwork bool, nit *NIT) *PSI {
	tableID := byte(NitID)
	if !actualNetwork {
		tableID = NitOtherID
	}
	return &PSI{
		TableID:         tableID,
		SyntaxIndicator: true,
		PrivateBit:      true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:   networkID,
			Version:      version,
			CurrentNext:  true,
			SpecificData: nit,
		},
	}
}

// Bytes outputs a byte slice representation of the NIT.
func (n *NIT) Bytes() []byte {
	var netDescs []byte
	for _, d := range n.NetworkDescriptors {
		netDescs = append(netDescs, d.Bytes()...)
	}

	var streamLoop []byte
	for _, s := range n.Streams {
		var descs []byte
		for _, d := range s.Descriptors {
			descs = append(descs, d.Bytes()...)
		}
		var entry [6]byte
		entry[0] = byte(s.TransportStreamID >> 8)
		entry[1] = byte(s.TransportStreamID)
		entry[2] = byte(s.OriginalNetworkID >> 8)
		entry[3] = byte(s.OriginalNetworkID)
		entry[4] = 0xf0 | (0x03 & byte(len(descs)>>8))
		entry[5] = byte(len(descs))
		streamLoop = append(streamLoop, entry[:]...)
		streamLoop = append(streamLoop, descs...)
	}

	out := make([]byte, 2, 2+len(netDescs)+4+len(streamLoop))
	out[0] = 0xf0 | (0x03 & byte(len(netDescs)>>8))
	out[1] = byte(len(netDescs))
	out = append(out, netDescs...)

	var tsLoopHdr [2]byte
	tsLoopHdr[0] = 0xf0 | (0x03 & byte(len(streamLoop)>>8))
	tsLoopHdr[1] = byte(len(streamLoop))
	out = append(out, tsLoopHdr[:]...)
	out = append(out, streamLoop...)
	return out
}

// DecodeNIT parses a reassembled NIT table (as produced by Assembler) into
// its specific data. It expects the full section, pointer field included.
func DecodeNIT(section []byte) (*NIT, error) {
	const specificDataOffset = 4 + TSSDefLen // pointer + table_id + 2 length bytes + syntax section header
	if len(section) < specificDataOffset+2+crcSize {
		return nil, ErrTruncatedDescriptor
	}
	body := section[specificDataOffset:] // network_descriptors_length onward
	if len(body) < 2 {
		return nil, ErrTruncatedDescriptor
	}
	netDescLen := int(body[0]&0x03)<<8 | int(body[1])
	if 2+netDescLen+2 > len(body) {
		return nil, ErrTruncatedDescriptor
	}
	netDescs, err := ParseDescriptors(body[2 : 2+netDescLen])
	if err != nil {
		return nil, err
	}
	rest := body[2+netDescLen:]
	if len(rest) < 2 {
		return nil, ErrTruncatedDescriptor
	}
	tsLoopLen := int(rest[0]&0x03)<<8 | int(rest[1])
	loop := rest[2:]
	if tsLoopLen > len(loop) {
		tsLoopLen = len(loop)
	}
	loop = loop[:tsLoopLen]

	var streams []TransportStreamEntry
	for i := 0; i+6 <= len(loop); {
		tsID := uint16(loop[i])<<8 | uint16(loop[i+1])
		onID := uint16(loop[i+2])<<8 | uint16(loop[i+3])
		dLen := int(loop[i+4]&0x03)<<8 | int(loop[i+5])
		i += 6
		if i+dLen > len(loop) {
			return nil, ErrTruncatedDescriptor
		}
		descs, err := ParseDescriptors(loop[i : i+dLen])
		if err != nil {
			return nil, err
		}
		streams = append(streams, TransportStreamEntry{
			TransportStreamID: tsID,
			OriginalNetworkID: onID,
			Descriptors:       descs,
		})
		i += dLen
	}
	return &NIT{NetworkDescriptors: netDescs, Streams: streams}, nil
}
