/*
NAME
  ubuf.go

DESCRIPTION
  ubuf.go provides a minimal ref-counted byte-segment type standing in for
  the buffer-manager ("ubuf") that the mux treats as an external
  collaborator. It is intentionally small: append/slice/peek/dup, nothing
  more, modeled on the single-thread ref-counting contract the mux core
  expects from the wider pipe framework.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ubuf provides a ref-counted byte buffer used as the mux's wire
// payload unit, standing in for the external "block buffer pool" the
// specification treats as a collaborator rather than a core component.
package ubuf

import "errors"

// ErrReleased is returned by any operation on a Buf whose ref count has
// already reached zero.
var ErrReleased = errors.New("ubuf: use of released buffer")

// Buf is a ref-counted, ordered byte segment. The zero value is not usable;
// construct with New or Dup. Buf is not safe for concurrent use: the mux
// core is single-threaded and only ever touches a Buf from the scheduler
// goroutine.
type Buf struct {
	data []byte
	refs int
}

// New returns a single-owner Buf wrapping a copy of data.
func New(data []byte) *Buf {
	b := &Buf{data: append([]byte(nil), data...), refs: 1}
	return b
}

// NewN returns a single-owner Buf of n zeroed bytes.
func NewN(n int) *Buf {
	return &Buf{data: make([]byte, n), refs: 1}
}

// Use increments the ref count and returns the same Buf, mirroring the
// pipe framework's use()/release() discipline so that a PsiPid carrier can
// hold an external and an internal reference to the same segment.
func (b *Buf) Use() *Buf {
	b.refs++
	return b
}

// Release decrements the ref count. When it reaches zero the backing array
// is released for GC. Calling Release on an already-released Buf panics,
// since that indicates a ref-counting bug upstream.
func (b *Buf) Release() {
	if b.refs <= 0 {
		panic("ubuf: release of already-released buffer")
	}
	b.refs--
	if b.refs == 0 {
		b.data = nil
	}
}

// Dup returns a new single-owner Buf that is a copy of b's bytes, leaving
// b's own ref count untouched. Used for padding templates, which are
// stamped out once per tick.
func (b *Buf) Dup() (*Buf, error) {
	if b.refs == 0 {
		return nil, ErrReleased
	}
	return New(b.data), nil
}

// Len returns the number of bytes currently in the buffer.
func (b *Buf) Len() int {
	if b.refs == 0 {
		return 0
	}
	return len(b.data)
}

// Bytes returns the backing slice. Callers must not retain it past a
// Release call on b.
func (b *Buf) Bytes() ([]byte, error) {
	if b.refs == 0 {
		return nil, ErrReleased
	}
	return b.data, nil
}

// Append appends p to the buffer in place.
func (b *Buf) Append(p []byte) error {
	if b.refs == 0 {
		return ErrReleased
	}
	b.data = append(b.data, p...)
	return nil
}

// Slice returns a new single-owner Buf covering b.data[from:to].
func (b *Buf) Slice(from, to int) (*Buf, error) {
	if b.refs == 0 {
		return nil, ErrReleased
	}
	if from < 0 || to > len(b.data) || from > to {
		return nil, errors.New("ubuf: slice out of range")
	}
	return New(b.data[from:to]), nil
}
