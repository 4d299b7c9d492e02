/*
NAME
  main.go

DESCRIPTION
  tsmuxd reads one raw H.264 elementary stream from a file and multiplexes
  it, alone in a single program, into a conformant MPEG-TS file at a fixed
  octetrate, advancing the scheduler's clock by one aggregate's nominal
  duration per tick without sleeping. It exists to give
  the mux package a runnable demonstration entry point, in the same spirit
  as cmd/looper and cmd/rv elsewhere in the source tree.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Command tsmuxd multiplexes one elementary stream into an MPEG-TS file.
package main

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/tsmux/config"
	"github.com/ausocean/tsmux/container/mts"
	"github.com/ausocean/tsmux/flow"
	"github.com/ausocean/tsmux/mux"
)

// Logging related constants, matching the sizes cmd/looper uses for its
// own rotated log file.
const (
	logPath      = "tsmuxd.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Debug
	logSuppress  = false
)

func main() {
	inPath := flag.String("in", "", "path to a raw H.264 elementary stream")
	outPath := flag.String("out", "", "path to write the multiplexed TS file")
	cfgPath := flag.String("config", "", "optional hot-reloaded config file (key=value per line)")
	octetrate := flag.Uint64("octetrate", 2_000_000, "fixed output octetrate, bytes/sec")
	sid := flag.Uint("sid", 1, "program number")
	pid := flag.Uint("pid", 257, "elementary stream PID")
	appendOut := flag.Bool("append", false, "append to an existing -out file instead of truncating it")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	l := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if *inPath == "" || *outPath == "" {
		l.Fatal("both -in and -out are required")
	}

	cfg := config.New(l)
	if *cfgPath != "" {
		w, err := config.NewWatcher(cfg, *cfgPath)
		if err != nil {
			l.Fatal("could not start config watcher", "error", err)
		}
		defer w.Close()
	}
	if err := cfg.Validate(); err != nil {
		l.Fatal("invalid config", "error", err)
	}

	m, err := mux.New(l,
		mux.WithTransportStreamID(cfg.TransportStreamID),
		mux.WithClock(time.Now),
	)
	if err != nil {
		l.Fatal("could not construct mux", "error", err)
	}
	m.SetOctetrate(*octetrate)
	if err := m.SetOutputSize(7 * 188); err != nil {
		l.Fatal("bad output size", "error", err)
	}

	prog, err := m.AddProgram(uint16(*sid))
	if err != nil {
		l.Fatal("could not add program", "error", err)
	}

	def := &flow.Definition{
		Def:       flow.DefH264,
		PID:       uint16(*pid),
		Type:      flow.TypeVideo,
		Octetrate: *octetrate,
	}
	in, err := m.AddInput(uint16(*sid), def)
	if err != nil {
		l.Fatal("could not add input", "error", err)
	}
	_ = prog

	inFile, err := os.Open(*inPath)
	if err != nil {
		l.Fatal("could not open input", "error", err)
	}
	defer inFile.Close()

	outFlags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if *appendOut {
		outFlags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	outFile, err := os.OpenFile(*outPath, outFlags, 0644)
	if err != nil {
		l.Fatal("could not open output", "error", err)
	}
	defer outFile.Close()

	tick := time.Duration(uint64(m.OutputSize())*uint64(time.Second)) / time.Duration(*octetrate)
	if err := run(l, m, in, inFile, outFile, tick, *appendOut); err != nil {
		l.Fatal("mux run failed", "error", err)
	}
}

// run feeds inFile into in one chunk at a time and writes every tick's
// aggregate to outFile, stopping at EOF once the encapsulator drains.
// tick is the nominal wall-clock duration of one output aggregate at the
// configured octetrate. When resuming, a PAT-leading aggregate's
// continuity counter is checked against the repairer's expectation so
// that resuming a cut-short append doesn't leave a silent CC gap.
func run(l logging.Logger, m *mux.Mux, in *mux.Input, inFile io.Reader, outFile io.Writer, tick time.Duration, resuming bool) error {
	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)
	now := time.Now()
	eof := false

	dr := mts.NewDiscontinuityRepairer()
	if resuming {
		// The fresh mux always starts its PAT CC at 0; a resumed file's
		// last PAT packet did not, so the first aggregate written here
		// is flagged discontinuous rather than silently restarting the
		// counter.
		dr.Failed()
	}

	for {
		if !eof {
			n, err := inFile.Read(buf)
			if n > 0 {
				if err := in.Push(now, append([]byte(nil), buf[:n]...)); err != nil {
					l.Warning("dropping chunk", "error", err)
				}
			}
			if err != nil {
				eof = true
				in.EOS()
			}
		}

		out, err := m.Tick(now)
		if err != nil {
			return err
		}
		if pid, err := mts.PID(out[:mts.PacketSize]); err == nil && pid == mts.PatPid {
			if err := dr.Repair(out); err != nil {
				return err
			}
		}
		if _, err := outFile.Write(out); err != nil {
			dr.Failed()
			return err
		}
		if eof {
			drained := true
			for i := 0; i+mts.PacketSize <= len(out); i += mts.PacketSize {
				if pid, err := mts.PID(out[i : i+mts.PacketSize]); err == nil && pid == in.Def().PID {
					drained = false
					break
				}
			}
			if drained {
				return nil
			}
		}
		now = now.Add(tick)
	}
}
