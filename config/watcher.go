/*
NAME
  watcher.go

DESCRIPTION
  watcher.go hot-reloads a Config from an on-disk "key=value" per line
  file whenever fsnotify reports it changed, so a long-running mux
  process can pick up an operator's interval/conformance/MTU change
  without a restart.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher applies a config file's contents to a Config on every write,
// using fsnotify to avoid a polling loop.
type Watcher struct {
	cfg  *Config
	path string
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher starts watching path for changes and applies its initial
// contents to cfg immediately.
func NewWatcher(cfg *Config, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{cfg: cfg, path: path, fsw: fsw, done: make(chan struct{})}
	if err := w.reload(); err != nil && cfg.Logger != nil {
		cfg.Logger.Warning("config: initial load failed", "path", path, "error", err)
	}
	go w.run()
	return w, nil
}

// Close stops the watcher's background goroutine and releases the
// underlying fsnotify watch.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil && w.cfg.Logger != nil {
				w.cfg.Logger.Warning("config: reload failed", "path", w.path, "error", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.cfg.Logger != nil {
				w.cfg.Logger.Warning("config: watcher error", "error", err)
			}
		}
	}
}

// reload parses the config file's "key=value" lines and applies them to
// the watched Config, skipping blank lines and "#"-prefixed comments.
func (w *Watcher) reload() error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	vars := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	w.cfg.Update(vars)
	return w.cfg.Validate()
}
