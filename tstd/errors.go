/*
NAME
  errors.go

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package tstd

import "errors"

// ErrOverflow is returned when admitting a unit would exceed the buffer's
// declared size.
var ErrOverflow = errors.New("tstd: buffer overflow")

// ErrRetention is returned when a buffered unit has exceeded its flow's
// max_delay, a fatal condition the mux reports as ERR_INVALID upstream.
var ErrRetention = errors.New("tstd: retention delay exceeded")
