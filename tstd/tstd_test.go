/*
NAME
  tstd_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tstd

import (
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func TestPushDrains(t *testing.T) {
	b := New((*logging.TestLogger)(t), 1000, 300, time.Second)
	t0 := time.Unix(0, 0)

	if err := b.Push(t0, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := b.Occupancy(), uint64(500); got != want {
		t.Errorf("occupancy after first push: got %d, want %d", got, want)
	}

	// 2 seconds elapse, draining at 300 bytes/sec (600 bytes) should clear
	// the buffer entirely.
	t1 := t0.Add(2 * time.Second)
	if err := b.Push(t1, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := b.Occupancy(), uint64(100); got != want {
		t.Errorf("occupancy after drain: got %d, want %d", got, want)
	}
}

func TestPushOverflow(t *testing.T) {
	b := New((*logging.TestLogger)(t), 100, 10, 0)
	t0 := time.Unix(0, 0)
	if err := b.Push(t0, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Push(t0, 1); err != ErrOverflow {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

func TestPushRetention(t *testing.T) {
	b := New((*logging.TestLogger)(t), 0, 0, time.Second)
	t0 := time.Unix(0, 0)
	if err := b.Push(t0, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t1 := t0.Add(2 * time.Second)
	if err := b.Push(t1, 10); err != ErrRetention {
		t.Errorf("got %v, want ErrRetention", err)
	}
}

func TestReset(t *testing.T) {
	b := New((*logging.TestLogger)(t), 1000, 100, time.Second)
	t0 := time.Unix(0, 0)
	b.Push(t0, 500)
	b.Reset()
	if got := b.Occupancy(); got != 0 {
		t.Errorf("occupancy after reset: got %d, want 0", got)
	}
}
