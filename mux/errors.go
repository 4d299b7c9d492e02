/*
NAME
  errors.go

DESCRIPTION
  errors.go defines the mux's error taxonomy: a small closed set of
  ErrorKind values (mirroring the pipe framework's UBASE_ERR_* codes) that
  every exported mux operation classifies its failures into, wrapped with
  context via pkg/errors so that %+v printing still gives a stack trace in
  development builds.

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

import (
	"fmt"

	stderrors "errors"

	"github.com/pkg/errors"
)

// Sentinel causes wrapped into classified Errors by the mux's exported
// methods.
var (
	errBadMTU        = stderrors.New("output size must be a positive multiple of the TS packet size")
	errProgramExists = stderrors.New("program number already registered")
	errNoSuchProgram = stderrors.New("no such program")
	errReservedSID   = stderrors.New("program number 0 is reserved for the NIT entry in the PAT")
	errPIDInUse      = stderrors.New("PID already in use by another program, PMT, PCR carrier or fixed table")
	errNoSuchInput   = stderrors.New("no such input")
)

// ErrorKind classifies a mux Error for callers that need to branch on
// failure category rather than match a specific sentinel.
type ErrorKind int

const (
	// KindInvalid signals a malformed input: a bad flow definition, an
	// out-of-range PID, a section that failed CRC.
	KindInvalid ErrorKind = iota
	// KindUnhandled signals a request the mux understands but cannot act
	// on in its current state, e.g. setting a conformance-incompatible
	// option.
	KindUnhandled
	// KindAlloc signals a resource exhaustion. A full encapsulator queue
	// is reported by Input.Push as KindExternal, not KindAlloc.
	KindAlloc
	// KindBusy signals a transient condition the caller should retry. A
	// splice with nothing ready is not an error and returns no Error.
	KindBusy
	// KindExternal signals a failure surfaced from a collaborator package
	// (encaps, tstd, psi) rather than the mux's own logic.
	KindExternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnhandled:
		return "unhandled"
	case KindAlloc:
		return "alloc"
	case KindBusy:
		return "busy"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every exported mux operation that
// can fail.
type Error struct {
	Kind ErrorKind
	Op   string // Operation that failed, e.g. "mux.AddInput".
	Err  error  // Underlying cause, may be nil for a bare classification.
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mux: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("mux: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr constructs an Error, wrapping cause with pkg/errors so a stack
// trace is available to %+v in development builds.
func newErr(kind ErrorKind, op string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
