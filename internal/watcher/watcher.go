// Package watcher reports new video files under the inbox directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/fuunylmz/Re-aniname/internal/logging"
)

type EventType string

const (
	EventCreate EventType = "create"
	EventWrite  EventType = "write"
	EventMove   EventType = "move"
	EventDelete EventType = "delete"
)

type FileEvent struct {
	Type EventType
	Path string
}

// Handler receives events for paths it accepts through IsMediaFile.
type Handler interface {
	HandleFileEvent(event FileEvent) error
	IsMediaFile(path string) bool
}

type Watcher struct {
	fsWatcher *fsnotify.Watcher
	handler   Handler
	recursive bool
	logger    *logging.Logger
}

type Option func(*Watcher)

func WithRecursive(recursive bool) Option {
	return func(w *Watcher) {
		w.recursive = recursive
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewWatcher(handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watcher requires a handler")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		handler:   handler,
		recursive: true,
		logger:    logging.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Watch registers each path. Missing paths are an error.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("unable to watch %s: %w", path, err)
		}
		if w.recursive {
			if err := w.addRecursive(path); err != nil {
				return err
			}
			continue
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("unable to watch %s: %w", path, err)
		}
		w.logger.Info("watcher", "Watching directory", logging.F("path", path))
	}
	return nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("unable to watch %s: %w", path, err)
		}
		w.logger.Debug("watcher", "Watching directory", logging.F("path", path))
		return nil
	})
}

// Start dispatches events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("watcher", "Watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("watcher events channel closed")
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addDir(event.Name)
					continue
				}
			}

			if err := w.handleEvent(event); err != nil {
				w.logger.Error("watcher", "Error handling event", err, logging.F("path", event.Name))
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher", "Watcher error", logging.F("error", err.Error()))
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// addDir starts watching a directory created after Watch and replays the
// video files already inside it, since a moved-in folder produces no
// per-file events.
func (w *Watcher) addDir(dir string) {
	if !w.recursive || hidden(dir) {
		return
	}
	if err := w.addRecursive(dir); err != nil {
		w.logger.Warn("watcher", "Failed to watch new directory", logging.F("path", dir), logging.F("error", err.Error()))
		return
	}
	w.logger.Info("watcher", "Now watching new directory", logging.F("path", dir))

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && hidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if err := w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create}); err != nil {
			w.logger.Error("watcher", "Error handling event", err, logging.F("path", path))
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) error {
	if !w.handler.IsMediaFile(event.Name) {
		return nil
	}

	eventType := EventCreate
	switch {
	case event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Rename):
		eventType = EventMove
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	}

	w.logger.Debug("watcher", "Event",
		logging.F("type", string(eventType)),
		logging.F("file", filepath.Base(event.Name)))

	return w.handler.HandleFileEvent(FileEvent{Type: eventType, Path: event.Name})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
