/*
DESCRIPTIONS
  helpers.go maps a PES stream_id to a MIME-like description of its
  content, per the stream_id assignment table in ISO/IEC 13818-1 section
  2.4.3.7.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pes

import "errors"

// stream_id values for MPEG video, MPEG audio, private_stream_1 and padding
// PES packets, per ISO/IEC 13818-1 table 2-18.
const (
	VideoSIDBase   = 0xe0 // First of the 16 video stream_id values (0xE0-0xEF).
	AudioSIDBase   = 0xc0 // First of the 32 audio stream_id values (0xC0-0xDF).
	PrivateStream1 = 0xbd // AC-3, E-AC-3, DTS, teletext, DVB subtitles.
	PaddingStream  = 0xbe
)

// ErrUnknownStreamID is returned by MIMEType for a stream_id this package
// has no mapping for.
var ErrUnknownStreamID = errors.New("pes: unknown stream ID")

// MIMEType returns a MIME-like description of the content carried by the
// given PES stream_id, for logging and diagnostics.
func MIMEType(id byte) (string, error) {
	switch {
	case id >= VideoSIDBase && id < VideoSIDBase+0x10:
		return "video/mpeg", nil
	case id >= AudioSIDBase && id < AudioSIDBase+0x20:
		return "audio/mpeg", nil
	case id == PrivateStream1:
		return "application/octet-stream", nil
	case id == PaddingStream:
		return "application/padding", nil
	default:
		return "", ErrUnknownStreamID
	}
}
