/*
NAME
  config.go

DESCRIPTION
  config.go defines Config, the flat set of mux parameters an operator can
  set at start-up or hot-reload at runtime: conformance policy, PSI/SI
  repetition intervals, MTU, pacing mode and identifiers. It mirrors the
  shape of revid's config.Config: exported fields, enum-style consts for
  mode switches, and a Validate/Update pair rather than per-field setters.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config holds the Mux's operator-facing configuration, including
// a file watcher that hot-reloads it without requiring a process restart.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
)

// Conformance mirrors mux.Conformance without importing package mux, so
// config stays a leaf dependency the mux package can import without a
// cycle.
type Conformance string

// Valid Conformance values, matched case-insensitively by Update.
const (
	ConformanceISO     Conformance = "iso"
	ConformanceDVB     Conformance = "dvb"
	ConformanceDVBNone Conformance = "dvb-no-tables"
	ConformanceATSC    Conformance = "atsc"
	ConformanceISDB    Conformance = "isdb"
	ConformanceAuto    Conformance = "auto"
)

// Mode mirrors mux.Mode.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeFile   Mode = "file"
	ModeCapped Mode = "capped"
)

// Default parameter values, applied by New before any Update.
const (
	DefaultMTU             = 188
	DefaultPATInterval     = 100 * time.Millisecond
	DefaultPMTInterval     = 100 * time.Millisecond
	DefaultPCRInterval     = 40 * time.Millisecond
	DefaultNITInterval     = 10 * time.Second
	DefaultSDTInterval     = 2 * time.Second
	DefaultEITInterval     = 2 * time.Second
	DefaultTDTInterval     = 30 * time.Second
	DefaultSCTE35Interval  = time.Second
)

// Config holds every operator-tunable mux parameter. Fields are exported
// so a cmd/ entry point can populate them directly from flags before the
// first Validate call.
type Config struct {
	Logger logging.Logger

	Conformance       Conformance
	Mode              Mode
	MTU               int
	FixedOctetrate    uint64
	PaddingOctetrate  uint64
	MuxDelay          time.Duration
	TransportStreamID uint16
	NetworkID         uint16
	NetworkName       string

	PATInterval    time.Duration
	PMTInterval    time.Duration
	PCRInterval    time.Duration
	NITInterval    time.Duration
	SDTInterval    time.Duration
	EITInterval    time.Duration
	TDTInterval    time.Duration
	SCTE35Interval time.Duration
}

// New returns a Config with every interval and the MTU set to their
// package defaults, auto conformance and live pacing mode.
func New(log logging.Logger) *Config {
	return &Config{
		Logger:         log,
		Conformance:    ConformanceAuto,
		Mode:           ModeLive,
		MTU:            DefaultMTU,
		PATInterval:    DefaultPATInterval,
		PMTInterval:    DefaultPMTInterval,
		PCRInterval:    DefaultPCRInterval,
		NITInterval:    DefaultNITInterval,
		SDTInterval:    DefaultSDTInterval,
		EITInterval:    DefaultEITInterval,
		TDTInterval:    DefaultTDTInterval,
		SCTE35Interval: DefaultSCTE35Interval,
	}
}

// Validate defaults any field left at its zero value and logs the
// substitution, mirroring revid's LogInvalidField pattern.
func (c *Config) Validate() error {
	if c.MTU <= 0 || c.MTU%188 != 0 {
		c.LogInvalidField("MTU", DefaultMTU)
		c.MTU = DefaultMTU
	}
	if c.Conformance == "" {
		c.LogInvalidField("Conformance", ConformanceAuto)
		c.Conformance = ConformanceAuto
	}
	if c.Mode == "" {
		c.LogInvalidField("Mode", ModeLive)
		c.Mode = ModeLive
	}
	return nil
}

// LogInvalidField logs that name was unset or invalid and def was
// substituted, matching revid.Config's diagnostic shape.
func (c *Config) LogInvalidField(name string, def interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}

// Update applies string-valued overrides keyed by field name, as parsed
// from a reloaded config file. Unknown keys and unparsable values are
// logged and skipped rather than treated as fatal, so one bad line in an
// operator's config file doesn't take down a running mux.
func (c *Config) Update(vars map[string]string) {
	for name, raw := range vars {
		if err := c.updateOne(name, raw); err != nil && c.Logger != nil {
			c.Logger.Warning("config: skipping invalid field", "field", name, "value", raw, "error", err)
		}
	}
}

func (c *Config) updateOne(name, raw string) error {
	switch name {
	case "Conformance":
		c.Conformance = Conformance(strings.ToLower(raw))
	case "Mode":
		c.Mode = Mode(raw)
	case "MTU":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		c.MTU = n
	case "FixedOctetrate":
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		c.FixedOctetrate = n
	case "PaddingOctetrate":
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		c.PaddingOctetrate = n
	case "MuxDelay":
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		c.MuxDelay = d
	case "TransportStreamID":
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return err
		}
		c.TransportStreamID = uint16(n)
	case "NetworkID":
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return err
		}
		c.NetworkID = uint16(n)
	case "NetworkName":
		c.NetworkName = raw
	case "PATInterval":
		return c.updateInterval(&c.PATInterval, raw)
	case "PMTInterval":
		return c.updateInterval(&c.PMTInterval, raw)
	case "PCRInterval":
		return c.updateInterval(&c.PCRInterval, raw)
	case "NITInterval":
		return c.updateInterval(&c.NITInterval, raw)
	case "SDTInterval":
		return c.updateInterval(&c.SDTInterval, raw)
	case "EITInterval":
		return c.updateInterval(&c.EITInterval, raw)
	case "TDTInterval":
		return c.updateInterval(&c.TDTInterval, raw)
	case "SCTE35Interval":
		return c.updateInterval(&c.SCTE35Interval, raw)
	default:
		return errors.New("unknown field")
	}
	return nil
}

func (c *Config) updateInterval(field *time.Duration, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*field = d
	return nil
}
