/*
NAME
  tdt.go

DESCRIPTION
  tdt.go encodes and decodes the time and date table (TDT), a short-form
  (no syntax section, no CRC) private section carrying UTC wall-clock time
  as Modified Julian Date plus BCD time-of-day.

  Normative reference: ETSI EN 300 468 section 5.2.5.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package psi

import (
	"errors"
	"time"
)

// TdtHeaderSize is the fixed size of a TDT section: 3-byte table header
// plus 5 bytes of MJD/BCD time, no CRC.
const TdtHeaderSize = 8

// ErrShortTDT is returned when a buffer is too small to hold a TDT section.
var ErrShortTDT = errors.New("psi: short TDT section")

// NewTDT builds a raw TDT section (pointer field, table header, and MJD/BCD
// payload; no syntax section or CRC, per the short-form table rule) for the
// given UTC instant.
func NewTDT(t time.Time) []byte {
	mjd, bcdTime := toMJDBCD(t.UTC())
	out := make([]byte, TdtHeaderSize)
	out[0] = 0x00 // pointer field
	out[1] = TdtID
	sectionLen := 5
	out[2] = 0x70 | (0x03 & byte(sectionLen>>8))
	out[3] = byte(sectionLen)
	out[4] = byte(mjd >> 8)
	out[5] = byte(mjd)
	out[6] = bcdTime[0]
	out[7] = bcdTime[1]
	out = append(out, bcdTime[2])
	return out
}

// DecodeTDT parses a raw TDT section and returns the UTC instant it
// encodes.
func DecodeTDT(b []byte) (time.Time, error) {
	if len(b) < TdtHeaderSize+1 {
		return time.Time{}, ErrShortTDT
	}
	mjd := uint16(b[4])<<8 | uint16(b[5])
	return fromMJDBCD(mjd, [3]byte{b[6], b[7], b[8]}), nil
}

// toMJDBCD converts a UTC time to Modified Julian Date and BCD-encoded
// hour/minute/second, per EN 300 468 annex C.
func toMJDBCD(t time.Time) (uint16, [3]byte) {
	y, m, d := t.Date()
	mjd := julianDayNumber(y, int(m), d) - 2400001
	return uint16(mjd), [3]byte{
		toBCD(byte(t.Hour())),
		toBCD(byte(t.Minute())),
		toBCD(byte(t.Second())),
	}
}

func fromMJDBCD(mjd uint16, bcd [3]byte) time.Time {
	y, m, d := dateFromJulianDayNumber(int(mjd) + 2400001)
	return time.Date(y, time.Month(m), d, int(fromBCD(bcd[0])), int(fromBCD(bcd[1])), int(fromBCD(bcd[2])), 0, time.UTC)
}

func toBCD(v byte) byte {
	return ((v / 10) << 4) | (v % 10)
}

func fromBCD(v byte) byte {
	return (v>>4)*10 + (v & 0x0f)
}

// julianDayNumber and dateFromJulianDayNumber implement the standard
// proleptic Gregorian <-> JDN conversion (Fliegel & Van Flandern).
func julianDayNumber(y, m, d int) int {
	a := (14 - m) / 12
	yy := y + 4800 - a
	mm := m + 12*a - 3
	return d + (153*mm+2)/5 + 365*yy + yy/4 - yy/100 + yy/400 - 32045
}

func dateFromJulianDayNumber(jdn int) (y, m, d int) {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - (146097*b)/4
	dd := (4*c + 3) / 1461
	e := c - (1461*dd)/4
	mm := (5*e + 2) / 153
	d = e - (153*mm+2)/5 + 1
	m = mm + 3 - 12*(mm/10)
	y = 100*b + dd - 4800 + mm/10
	return y, m, d
}
