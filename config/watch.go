package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ApplyLive copies the settings that are read every tick from next. Screen,
// device, telemetry and the pointer queue size are fixed at startup and
// keep their current values.
func (c *Config) ApplyLive(next *Config) {
	queue := c.Pointer.QueueSize
	c.Fluid = next.Fluid
	c.Pointer = next.Pointer
	c.Pointer.QueueSize = queue
	c.Render = next.Render
}

// Watcher reloads a config file whenever it changes on disk and publishes
// the result. Files that fail to load are logged and skipped.
type Watcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	updates  chan *Config
}

// NewWatcher watches path. The parent directory is watched so editors that
// replace the file on save are picked up.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		logger:   logger,
		watcher:  fw,
		debounce: 250 * time.Millisecond,
		updates:  make(chan *Config, 1),
	}, nil
}

// SetDebounce sets how long the file must be quiet before it is reloaded.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Updates returns the reloaded configs. Only the latest unread one is kept.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", "error", err)

		case <-debounce.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	select {
	case <-w.updates:
	default:
	}
	w.updates <- cfg
	w.logger.Info("config reloaded", "path", w.path)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
