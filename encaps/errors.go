/*
NAME
  errors.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package encaps

import "errors"

// ErrEOS is returned by Input once EOS has been called on the
// encapsulator.
var ErrEOS = errors.New("encaps: input after end of stream")

// ErrQueueFull is returned by Input when admitting the access unit would
// exceed the encapsulator's configured maximum queue length.
var ErrQueueFull = errors.New("encaps: queue full")
