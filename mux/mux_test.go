/*
NAME
  mux_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mux

import (
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/tsmux/container/mts"
	"github.com/ausocean/tsmux/flow"
)

func newTestMux(t *testing.T) *Mux {
	t.Helper()
	m, err := New((*logging.TestLogger)(t), WithTransportStreamID(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestAddProgramRejectsReservedSID(t *testing.T) {
	m := newTestMux(t)
	if _, err := m.AddProgram(0); !IsKind(err, KindInvalid) {
		t.Errorf("AddProgram(0): got %v, want a KindInvalid error", err)
	}
}

func TestAddProgramRejectsDuplicateSID(t *testing.T) {
	m := newTestMux(t)
	if _, err := m.AddProgram(1); err != nil {
		t.Fatalf("first AddProgram(1): %v", err)
	}
	if _, err := m.AddProgram(1); !IsKind(err, KindInvalid) {
		t.Errorf("second AddProgram(1): got %v, want a KindInvalid error", err)
	}
}

func TestAddInputRejectsDuplicatePID(t *testing.T) {
	m := newTestMux(t)
	if _, err := m.AddProgram(1); err != nil {
		t.Fatalf("AddProgram: %v", err)
	}
	if _, err := m.AddProgram(2); err != nil {
		t.Fatalf("AddProgram: %v", err)
	}
	def1 := &flow.Definition{Def: flow.DefH264, PID: 0x200, Type: flow.TypeVideo}
	if _, err := m.AddInput(1, def1); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	def2 := &flow.Definition{Def: flow.DefAAC, PID: 0x200, Type: flow.TypeAudio}
	if _, err := m.AddInput(2, def2); !IsKind(err, KindInvalid) {
		t.Errorf("AddInput with a PID already in use: got %v, want a KindInvalid error", err)
	}
}

func TestRemoveInputUnknownPID(t *testing.T) {
	m := newTestMux(t)
	if _, err := m.AddProgram(1); err != nil {
		t.Fatalf("AddProgram: %v", err)
	}
	if err := m.RemoveInput(1, 0x999); !IsKind(err, KindInvalid) {
		t.Errorf("RemoveInput on an unknown PID: got %v, want a KindInvalid error", err)
	}
}

func TestPCRCarrierPrefersVideo(t *testing.T) {
	m := newTestMux(t)
	if _, err := m.AddProgram(1); err != nil {
		t.Fatalf("AddProgram: %v", err)
	}
	audio := &flow.Definition{Def: flow.DefAAC, PID: 0x101, Type: flow.TypeAudio}
	if _, err := m.AddInput(1, audio); err != nil {
		t.Fatalf("AddInput audio: %v", err)
	}
	video := &flow.Definition{Def: flow.DefH264, PID: 0x102, Type: flow.TypeVideo}
	in, err := m.AddInput(1, video)
	if err != nil {
		t.Fatalf("AddInput video: %v", err)
	}
	if !in.IsPCRCarrier() {
		t.Errorf("video input should become the PCR carrier over an already-added audio input")
	}
}

func TestTickEmitsPAT(t *testing.T) {
	m := newTestMux(t)
	if err := m.SetOutputSize(7 * mts.PacketSize); err != nil {
		t.Fatalf("SetOutputSize: %v", err)
	}
	m.SetOctetrate(1_000_000)
	if _, err := m.AddProgram(1); err != nil {
		t.Fatalf("AddProgram: %v", err)
	}

	out, err := m.Tick(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(out)%mts.PacketSize != 0 {
		t.Fatalf("Tick output length %d is not a multiple of the TS packet size", len(out))
	}

	var sawPAT bool
	for i := 0; i < len(out); i += mts.PacketSize {
		pid, err := mts.PID(out[i : i+mts.PacketSize])
		if err != nil {
			t.Fatalf("mts.PID: %v", err)
		}
		if pid == mts.PatPid {
			sawPAT = true
		}
	}
	if !sawPAT {
		t.Errorf("first tick did not carry a PAT packet")
	}
}

func TestTickEmitsPMTAfterAddProgram(t *testing.T) {
	m := newTestMux(t)
	if err := m.SetOutputSize(7 * mts.PacketSize); err != nil {
		t.Fatalf("SetOutputSize: %v", err)
	}
	m.SetOctetrate(1_000_000)
	prog, err := m.AddProgram(1)
	if err != nil {
		t.Fatalf("AddProgram: %v", err)
	}

	out, err := m.Tick(time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	var sawPMT bool
	for i := 0; i < len(out); i += mts.PacketSize {
		pid, err := mts.PID(out[i : i+mts.PacketSize])
		if err != nil {
			t.Fatalf("mts.PID: %v", err)
		}
		if pid == prog.PMTPID {
			sawPMT = true
		}
	}
	if !sawPMT {
		t.Errorf("first tick after AddProgram did not carry the program's PMT, the PMT carrier was never wired into the scheduler's carrier list")
	}
}

func TestSetOutputSizeRejectsNonMultiple(t *testing.T) {
	m := newTestMux(t)
	if err := m.SetOutputSize(100); !IsKind(err, KindInvalid) {
		t.Errorf("SetOutputSize(100): got %v, want a KindInvalid error", err)
	}
}
