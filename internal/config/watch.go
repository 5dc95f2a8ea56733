package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceWindow is how long Watch waits for writes to settle before reloading.
var DebounceWindow = 100 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to onChange.
// Invalid files are reported through err and the previous config stays in
// effect for the caller. The directory is watched rather than the file so
// editors that replace the file on save keep working. Watch returns once the
// watcher is installed; it stops when ctx is done.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(cfg *Config, err error)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(DebounceWindow)
				} else {
					timer.Reset(DebounceWindow)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "path", abs, "error", err)
			case <-fire:
				fire = nil
				cfg, err := Load(abs)
				if err != nil {
					logger.Warn("config reload failed", "path", abs, "error", err)
				} else {
					logger.Info("config reloaded", "path", abs)
				}
				onChange(cfg, err)
			}
		}
	}()
	return nil
}
