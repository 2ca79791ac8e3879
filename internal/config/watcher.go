package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type ReloadEvent struct {
	Path   string
	Op     fsnotify.Op
	Config *Config
	Err    error
}

// Watcher reloads a config file when it changes on disk. It watches the
// parent directory so editors that replace the file are picked up.
type Watcher struct {
	path   string
	logger *slog.Logger
	events chan ReloadEvent
}

func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:   filepath.Clean(path),
		logger: logger,
		events: make(chan ReloadEvent, 16),
	}
}

// Events is closed when the watcher stops.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	go func() {
		defer fsw.Close()
		defer close(w.events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(w.path)
				if err != nil {
					w.logger.Warn("config reload failed", "path", ev.Name, "error", err)
				} else {
					w.logger.Info("config file changed", "path", ev.Name, "op", ev.Op.String())
				}
				select {
				case w.events <- ReloadEvent{Path: ev.Name, Op: ev.Op, Config: cfg, Err: err}:
				default:
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
