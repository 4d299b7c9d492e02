/*
NAME
  cat.go

DESCRIPTION
  cat.go encodes and decodes the conditional access table (CAT), a
  descriptor-only table carrying one or more CA_descriptors identifying
  the EMM PID(s) for each conditional access system multiplexed into the
  stream.

  Normative reference: ISO/IEC 13818-1 section 2.4.4.6.

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

// CAT is the conditional access table specific data, implementing
// SpecificData. table_id_extension is reserved (0x3fff) for a CAT, per the
// standard.
type CAT struct {
	Descriptors []Descriptor
}

// NewCATPSI builds a CAT section carrying the given CA_descriptors (see
// ConditionalAccessDescriptor).
func NewCATPSI(version byte, descriptors []Descriptor) *PSI {
	return &PSI{
		TableID:         CatID,
		SyntaxIndicator: true,
		SyntaxSection: &SyntaxSection{
			TableIDExt:   0x3fff,
			Version:      version,
			CurrentNext:  true,
			SpecificData: &CAT{Descriptors: descriptors},
		},
	}
}

// Bytes outputs a byte slice representation of the CAT.
func (c *CAT) Bytes() []byte {
	var out []byte
	for _, d := range c.Descriptors {
		out = append(out, d.Bytes()...)
	}
	return out
}

// DecodeCAT parses a reassembled CAT table into its specific data.
func DecodeCAT(section []byte) (*CAT, error) {
	const specificDataOffset = 4 + TSSDefLen
	if len(section) < specificDataOffset+crcSize {
		return nil, ErrTruncatedDescriptor
	}
	descs, err := ParseDescriptors(section[specificDataOffset : len(section)-crcSize])
	if err != nil {
		return nil, err
	}
	return &CAT{Descriptors: descs}, nil
}
