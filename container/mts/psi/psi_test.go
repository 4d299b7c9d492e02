/*
NAME
  psi_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPATRoundTrip(t *testing.T) {
	programs := map[uint16]uint16{1: 0x21, 2: 0x22}
	section := NewPATPSI(1234, 3, programs).Bytes()

	gotTSID, got, err := DecodePAT(section)
	if err != nil {
		t.Fatalf("DecodePAT: %v", err)
	}
	if gotTSID != 1234 {
		t.Errorf("transport_stream_id: got %d, want 1234", gotTSID)
	}
	gotMap := make(map[uint16]uint16, len(got.Entries))
	for _, e := range got.Entries {
		gotMap[e.Program] = e.ProgramMapPID
	}
	if diff := cmp.Diff(programs, gotMap); diff != "" {
		t.Errorf("PAT round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPMTRoundTrip(t *testing.T) {
	streams := []StreamSpecificData{
		{StreamType: 0x1b, PID: 0x101},
		{StreamType: 0x81, PID: 0x102, Descriptors: []Descriptor{LanguageDescriptor("eng", 0)}},
	}
	section := NewPMTPSI(7, 2, 0x100, streams).Bytes()

	gotProgram, got, err := DecodePMT(section)
	if err != nil {
		t.Fatalf("DecodePMT: %v", err)
	}
	if gotProgram != 7 {
		t.Errorf("program_number: got %d, want 7", gotProgram)
	}
	if got.ProgramClockPID != 0x100 {
		t.Errorf("PCR PID: got %#x, want 0x100", got.ProgramClockPID)
	}
	if diff := cmp.Diff(streams, got.Streams); diff != "" {
		t.Errorf("PMT stream loop mismatch (-want +got):\n%s", diff)
	}
}

func TestSDTRoundTrip(t *testing.T) {
	sdt := &SDT{
		OriginalNetworkID: 42,
		Services: []ServiceEntry{
			{ServiceID: 1, EITSchedule: true, EITPresentFollowing: true, RunningStatus: RunningRunning},
			{ServiceID: 2, RunningStatus: RunningNotRunning, FreeCA: true, Descriptors: []Descriptor{ServiceDescriptor(0x01, "Provider", "Service")}},
		},
	}
	section := NewSDTPSI(99, 5, true, sdt).Bytes()

	got, err := DecodeSDT(section)
	if err != nil {
		t.Fatalf("DecodeSDT: %v", err)
	}
	if diff := cmp.Diff(sdt, got); diff != "" {
		t.Errorf("SDT round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCATRoundTrip(t *testing.T) {
	cat := &CAT{Descriptors: []Descriptor{ConditionalAccessDescriptor(0x2600, 0x1fff, nil)}}
	section := NewCATPSI(1, cat.Descriptors).Bytes()

	got, err := DecodeCAT(section)
	if err != nil {
		t.Fatalf("DecodeCAT: %v", err)
	}
	if diff := cmp.Diff(cat, got); diff != "" {
		t.Errorf("CAT round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNITRoundTrip(t *testing.T) {
	nit := &NIT{
		NetworkDescriptors: []Descriptor{NetworkNameDescriptor("AusOcean Test Network")},
		Streams: []TransportStreamEntry{
			{TransportStreamID: 1, OriginalNetworkID: 42},
		},
	}
	section := NewNITPSI(42, 0, true, nit).Bytes()

	got, err := DecodeNIT(section)
	if err != nil {
		t.Fatalf("DecodeNIT: %v", err)
	}
	if diff := cmp.Diff(nit, got); diff != "" {
		t.Errorf("NIT round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemblerIdempotence(t *testing.T) {
	section := NewPATPSI(1, 0, map[uint16]uint16{1: 0x20}).Bytes()

	var a Assembler
	if !a.Section(section, false) {
		t.Fatalf("first delivery: expected a commit")
	}
	if a.Section(section, false) {
		t.Errorf("repeat delivery of the same section committed again, want no-op")
	}

	bumped := NewPATPSI(1, 1, map[uint16]uint16{1: 0x20}).Bytes()
	if !a.Section(bumped, false) {
		t.Errorf("version-bumped section did not commit")
	}
}

// eitSection builds one section of a 4-section (0..3) EIT schedule table
// whose segment actually ends at section 2 -- section 3 covers a segment
// with no scheduled events and is therefore never sent.
func eitSection(section byte) []byte {
	eit := &EIT{TransportStreamID: 1, OriginalNetworkID: 1, SegmentLastSectionNumber: 2}
	return NewEITPSI(1, 0, section, 3, EITScheduleActual, eit).Bytes()
}

func TestAssemblerEITSegmentHole(t *testing.T) {
	var a Assembler
	if a.Section(eitSection(0), true) {
		t.Fatalf("section 0 alone should not complete the segment")
	}
	if a.Section(eitSection(1), true) {
		t.Fatalf("sections 0-1 should not complete the segment")
	}
	if !a.Section(eitSection(2), true) {
		t.Errorf("sections 0-2 should complete the segment even though last_section_number is 3")
	}
}

func TestAssemblerEITOutOfOrder(t *testing.T) {
	// Sections may arrive out of order; the segment only completes once
	// every section up to segment_last_section_number has been seen.
	var a Assembler
	if a.Section(eitSection(2), true) {
		t.Fatalf("section 2 alone should not complete the segment")
	}
	if a.Section(eitSection(0), true) {
		t.Fatalf("sections 0,2 should not complete the segment, section 1 still missing")
	}
	if !a.Section(eitSection(1), true) {
		t.Errorf("sections 0-2 (delivered out of order) should complete the segment")
	}
}
