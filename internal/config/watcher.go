package config

import (
	"context"
	"path/filepath"
	"time"

	"oatty/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the user and project configuration roots for changes and
// debounces them into a single notification, feeding the plugin engine's
// UpdateConfig hot-reload path (spec section 4.4) and any other consumer
// that wants to react to an on-disk definition change without a restart.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates a Watcher rooted at the subdirectory (e.g. "plugins")
// under both the user and project configuration directories. Missing
// directories are skipped rather than treated as an error: a layer that
// doesn't exist when NewWatcher runs contributes no events, even if it is
// created later.
func NewWatcher(subdirectory string) (*Watcher, error) {
	userDir, projectDir, err := GetConfigurationPaths()
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{filepath.Join(userDir, subdirectory), filepath.Join(projectDir, subdirectory)} {
		if err := fsw.Add(dir); err != nil {
			logging.Debug("ConfigWatcher", "not watching %s: %v", dir, err)
		}
	}

	return &Watcher{fsw: fsw, debounce: 250 * time.Millisecond}, nil
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Watch runs until ctx is cancelled, invoking onChange at most once per
// debounce window after one or more filesystem events are observed. A
// caller typically reloads its definitions and calls the plugin engine's
// UpdateConfig from onChange.
func (w *Watcher) Watch(ctx context.Context, onChange func()) {
	var pending bool
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("ConfigWatcher", "watch error: %v", err)
		case <-timer.C:
			pending = false
			onChange()
		}
	}
}
