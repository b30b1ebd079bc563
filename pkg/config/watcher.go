package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig initializes a filesystem watcher for the specified files.
// It returns a channel that emits an empty struct when a change has been
// detected and debounced. The watcher runs in a goroutine until the
// context is canceled.
//
// The parent directories are watched rather than the files themselves,
// so atomic saves (write temp file + rename, as vim and nano do) keep
// firing events after the original inode is gone.
func WatchConfig(ctx context.Context, files ...string) <-chan struct{} {
	reloadCh := make(chan struct{}, 1) // Buffer 1 so we don't block sender

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		return reloadCh
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve absolute path for watch file", "file", file)
			continue
		}
		watched[absPath] = true
		dirs[filepath.Dir(absPath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Could not watch directory", "dir", dir, "error", err)
		} else {
			slog.Debug("Watching configuration directory", "dir", dir)
		}
	}

	go func() {
		defer watcher.Close()
		defer close(reloadCh)

		// Debounce timer logic
		var timer *time.Timer
		debounceDuration := 500 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil || !watched[abs] {
					continue
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
					// Restart the debounce timer on every burst of events
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounceDuration, func() {
						slog.Info("Configuration change detected", "file", event.Name)
						// Non-blocking send
						select {
						case reloadCh <- struct{}{}:
						default:
						}
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher encountered an error", "error", err)
			}
		}
	}()

	return reloadCh
}
