package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the burst of events editors emit on save.
const debounce = 500 * time.Millisecond

// Watch reloads the config file on change and invokes onReload with the
// new, validated configuration. A file that fails to parse or validate is
// logged and ignored; the previous configuration stays in effect.
//
// The parent directory is watched rather than the file itself so that
// rename-over saves (vim, atomic writers) keep being observed.
func Watch(ctx context.Context, path string, logger *slog.Logger, onReload func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
					fire = timer.C
				} else {
					timer.Reset(debounce)
				}
			case <-fire:
				timer = nil
				fire = nil
				cfg, err := Load(abs)
				if err != nil {
					logger.Error("config reload failed, keeping previous", "err", err)
					continue
				}
				logger.Info("config reloaded", "path", abs)
				onReload(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "err", err)
			}
		}
	}()

	return nil
}
