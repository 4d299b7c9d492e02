/*
NAME
  encaps_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package encaps

import (
	"testing"
	"time"

	"github.com/ausocean/tsmux/container/mts"
	"github.com/ausocean/tsmux/flow"
)

func TestInputSplice(t *testing.T) {
	def := &flow.Definition{PID: 0x100, Def: flow.DefH264, Type: flow.TypeVideo}
	e, err := New(nil, def, WithPCRCarrier(40*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data := make([]byte, 400)
	for i := range data {
		data[i] = byte(i)
	}
	now := time.Unix(0, 0)
	if err := e.Input(now, data); err != nil {
		t.Fatalf("Input failed: %v", err)
	}

	var packets [][]byte
	for {
		buf, ok, err := e.Splice(10 * time.Millisecond)
		if err != nil {
			t.Fatalf("Splice failed: %v", err)
		}
		if !ok {
			break
		}
		b, err := buf.Bytes()
		if err != nil {
			t.Fatalf("Bytes failed: %v", err)
		}
		if len(b) != mts.PacketSize {
			t.Errorf("unexpected packet size: got %d, want %d", len(b), mts.PacketSize)
		}
		if b[0] != 0x47 {
			t.Errorf("missing sync byte: got 0x%x", b[0])
		}
		packets = append(packets, b)
	}
	if len(packets) == 0 {
		t.Fatal("expected at least one packet")
	}

	first := packets[0]
	pusi := first[1]&0x40 != 0
	if !pusi {
		t.Error("first packet should have PUSI set")
	}
}

func TestInputAfterEOS(t *testing.T) {
	def := &flow.Definition{PID: 0x101, Def: flow.DefAAC, Type: flow.TypeAudio}
	e, err := New(nil, def)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.EOS()
	if err := e.Input(time.Unix(0, 0), []byte{1, 2, 3}); err != ErrEOS {
		t.Errorf("got %v, want ErrEOS", err)
	}
}
