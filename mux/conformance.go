/*
NAME
  conformance.go

DESCRIPTION
  conformance.go selects which PSI/SI table set a Mux generates: plain
  ISO/IEC 13818-1 (PAT/PMT/CAT only), DVB (adds NIT/SDT/EIT/TDT), a
  DVB-no-tables mode for links where an upstream already injects SI, and
  the ATSC/ISDB placeholders which fall back to the ISO baseline since
  this mux does not implement PSIP or ARIB B10/B25 encoding.

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

// Conformance selects the PSI/SI table policy a Mux follows.
type Conformance int

const (
	ConformanceISO Conformance = iota
	ConformanceDVB
	ConformanceDVBNoTables
	ConformanceATSC
	ConformanceISDB
)

func (c Conformance) String() string {
	switch c {
	case ConformanceISO:
		return "iso"
	case ConformanceDVB:
		return "dvb"
	case ConformanceDVBNoTables:
		return "dvb-no-tables"
	case ConformanceATSC:
		return "atsc"
	case ConformanceISDB:
		return "isdb"
	default:
		return "unknown"
	}
}

// carriesDVBTables reports whether this conformance emits NIT/SDT/EIT/TDT
// in addition to PAT/PMT/CAT.
func (c Conformance) carriesDVBTables() bool {
	return c == ConformanceDVB
}
