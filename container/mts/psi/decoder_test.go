/*
NAME
  decoder_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import "testing"

func TestPMTDecoderPublishesOnCommit(t *testing.T) {
	d := NewPMTDecoder(0x100)
	streams := []StreamSpecificData{{StreamType: 0x1b, PID: 0x101}}
	section := NewPMTPSI(7, 0, 0x100, streams).Bytes()

	def, err := d.Feed(section)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if def == nil {
		t.Fatalf("expected a definition on first commit, got nil")
	}
	if def.PID != 0x100 {
		t.Errorf("PID: got %#x, want 0x100", def.PID)
	}

	if def, err := d.Feed(section); err != nil || def != nil {
		t.Errorf("repeat delivery: got (%v, %v), want (nil, nil)", def, err)
	}

	bumped := NewPMTPSI(7, 1, 0x100, streams).Bytes()
	def, err = d.Feed(bumped)
	if err != nil {
		t.Fatalf("Feed bumped: %v", err)
	}
	if def == nil {
		t.Errorf("expected a definition on version bump, got nil")
	}

	pmt, ok := d.Last()
	if !ok || pmt == nil {
		t.Fatalf("Last: expected a decoded PMT after a commit")
	}
}

func TestSDTDecoderTruncatedSectionResets(t *testing.T) {
	d := NewSDTDecoder(0x11)

	// A hand-built section whose common header and CRC are well-formed
	// (so the Assembler accepts and reassembles it) but whose specific
	// data is one byte short of the minimum DecodeSDT requires,
	// exercising the decode-failure path distinct from a CRC failure.
	hdr := []byte{0x00, SdtID, 0x80 | 0x40 | 0x30, 0x02 + 9, 0x00, 0x01, 0xc1, 0x00, 0x00, 0x00, 0x00}
	section := AddCRC(hdr)

	if _, err := d.Feed(section); err == nil {
		t.Fatalf("expected an error decoding a truncated section")
	}
	if _, ok := d.Last(); ok {
		t.Errorf("Last: expected no decoded table after a failed decode")
	}
}
