package server

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to a single file. The file's directory is watched
// so that editors replacing the file on save are noticed too.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *log.Logger
}

// NewWatcher creates a watcher for path. Bursts of events closer together
// than debounce are reported once.
func NewWatcher(path string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{path: abs, debounce: debounce, logger: logger}, nil
}

// Path returns the watched file
func (w *Watcher) Path() string {
	return w.path
}

// Run calls onChange after each burst of changes until ctx is done
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("SERVER: watcher error: %v", err)

		case <-fire:
			fire = nil
			onChange()
		}
	}
}

// handleEvent reports whether event changed the watched file's contents
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.logger.Printf("SERVER: %s was removed, waiting for it to come back", w.path)
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
