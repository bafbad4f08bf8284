package curation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher fires a callback shortly after new flag files appear.
// Bursts of events within the debounce window collapse into one call.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	onChange func(context.Context)
	logger   *slog.Logger
}

// NewWatcher observes dirs; onChange runs on the watcher goroutine.
func NewWatcher(dirs []string, debounce time.Duration, onChange func(context.Context), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dirs: dirs, debounce: debounce, onChange: onChange, logger: logger}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new fs watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.logger.Debug("watching curation flags", "dirs", w.dirs)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, ok := ParseFlagName(filepath.Base(ev.Name)); !ok {
				continue
			}
			w.logger.Debug("flag changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fs watcher error", "error", err)
		case <-timer.C:
			if w.onChange != nil {
				w.onChange(ctx)
			}
		}
	}
}
