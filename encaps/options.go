/*
NAME
  options.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package encaps

import "time"

// WithMaxLength sets the queue length cap at construction time.
func WithMaxLength(n int) Option {
	return func(e *Encaps) error {
		e.maxLength = n
		return nil
	}
}

// WithPCRCarrier marks this encapsulator as the program's PCR carrier at
// construction time.
func WithPCRCarrier(period time.Duration) Option {
	return func(e *Encaps) error {
		e.pcrProg = true
		if period > 0 {
			e.pcrPeriod = period
		}
		return nil
	}
}

// WithInitialCC sets the starting continuity counter, used when resuming
// an encapsulator against an already-running PID.
func WithInitialCC(cc byte) Option {
	return func(e *Encaps) error {
		e.cc = cc & 0x0f
		return nil
	}
}
