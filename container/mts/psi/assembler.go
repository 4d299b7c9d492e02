/*
NAME
  assembler.go

DESCRIPTION
  assembler.go reassembles a multi-section PSI/SI table from individual
  sections, tolerating out-of-order delivery and, for EIT schedule tables,
  gaps left by segments that genuinely have no events.

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

import "bytes"

// Assembler reassembles a PSI table from its constituent sections, holding
// the most recently committed complete table so that a repeat delivery of
// an unchanged table can be detected and discarded without triggering a
// downstream update. Zero value is ready to use.
type Assembler struct {
	tableID      byte
	tableIDExt   uint16
	version      byte
	haveVersion  bool
	lastSection  byte
	segmentLast  byte // segment_last_section_number, EIT only; 0 if unused.
	slots        [][]byte
	present      []bool
	committed    []byte // last fully reassembled, CRC-valid table (concatenated sections).
}

// Reset discards all in-flight section state, forcing the next Section call
// to start a fresh table from scratch. Called whenever a section fails CRC
// or carries an unexpected table_id/table_id_extension combination.
func (a *Assembler) Reset() {
	a.haveVersion = false
	a.slots = nil
	a.present = nil
	a.segmentLast = 0
}

// Section feeds one section of raw PSI bytes (pointer field already
// stripped) into the assembler. It returns true when this call completes a
// table that differs from the previously committed one -- i.e. a genuine
// update the caller should act on. A repeat of an already-committed table,
// a section belonging to an in-progress but still-incomplete table, or a
// section that fails CRC all return false.
//
// eitHole, when true, applies the EIT scheduling table's tolerant
// completion rule: a table is considered complete once every section up to
// segment_last_section_number has been seen, even if later segments
// (tracked via last_section_number) have not arrived yet, since EIT
// segments with no scheduled events are simply never sent.
func (a *Assembler) Section(section []byte, eitHole bool) bool {
	// specificDataOffset mirrors the per-table Decode* functions: pointer
	// field (1) + table_id (1) + section_length (2) + table_id_extension
	// (2) + version/current_next (1) + section_number (1) +
	// last_section_number (1) = 9 bytes of common header before a table's
	// specific data begins.
	const specificDataOffset = 4 + TSSDefLen
	if len(section) < specificDataOffset+crcSize {
		return false
	}
	if !VerifyCRC(section[1:]) {
		a.Reset()
		return false
	}

	tableID := section[1]
	tableIDExt := uint16(section[4])<<8 | uint16(section[5])
	version := (section[6] >> 1) & 0x1f
	sectionNum := section[7]
	lastSection := section[8]

	if a.haveVersion && (a.tableID != tableID || a.tableIDExt != tableIDExt || a.version != version) {
		a.Reset()
	}
	a.tableID = tableID
	a.tableIDExt = tableIDExt
	a.version = version
	a.haveVersion = true
	a.lastSection = lastSection

	need := int(lastSection) + 1
	if len(a.slots) < need {
		grownSlots := make([][]byte, need)
		copy(grownSlots, a.slots)
		a.slots = grownSlots
		grownPresent := make([]bool, need)
		copy(grownPresent, a.present)
		a.present = grownPresent
	}
	a.slots[sectionNum] = append([]byte(nil), section...)
	a.present[sectionNum] = true

	// The EIT's segment_last_section_number sits 4 bytes into its specific
	// data, after transport_stream_id and original_network_id.
	const eitSegmentLastOffset = specificDataOffset + 4
	if eitHole && len(section) > eitSegmentLastOffset {
		segLast := section[eitSegmentLastOffset]
		if segLast > a.segmentLast {
			a.segmentLast = segLast
		}
	}

	completeTo := int(lastSection)
	if eitHole {
		completeTo = int(a.segmentLast)
	}
	for i := 0; i <= completeTo; i++ {
		if !a.present[i] {
			return false
		}
	}

	var table []byte
	for i := 0; i <= completeTo; i++ {
		if a.present[i] {
			table = append(table, a.slots[i]...)
		}
	}
	if bytes.Equal(table, a.committed) {
		return false
	}
	a.committed = table
	return true
}

// Table returns the most recently committed reassembled table, or nil if
// none has completed yet.
func (a *Assembler) Table() []byte {
	return a.committed
}

// Version returns the version_number of the most recently accepted section,
// which may belong to a table still being assembled; ok is false after Reset.
func (a *Assembler) Version() (byte, bool) {
	return a.version, a.haveVersion
}
