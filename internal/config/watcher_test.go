package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/qpctl/internal/config"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qpctl.yaml")
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := config.NewWatcher(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	updated := config.DefaultConfig()
	updated.Tasks = updated.Tasks[:1]
	write := func() {
		if err := config.Save(path, updated); err != nil {
			t.Errorf("Save: %v", err)
		}
	}
	// Unrelated files in the same directory are ignored.
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	write()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-w.Events():
			if filepath.Base(ev.Path) != "qpctl.yaml" {
				t.Fatalf("unexpected event for %s", ev.Path)
			}
			// A write may be observed half-way; wait for the full file.
			if ev.Err == nil && len(ev.Config.Tasks) == 1 {
				return
			}
		case <-tick.C:
			write()
		case <-deadline:
			t.Fatal("timed out waiting for reload event")
		}
	}
}

func TestWatcher_StopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qpctl.yaml")
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	w := config.NewWatcher(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	cancel()
	select {
	case _, ok := <-w.Events():
		for ok {
			_, ok = <-w.Events()
		}
	case <-time.After(3 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}
