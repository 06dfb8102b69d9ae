package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches the config file and reloads it into a Runtime on change.
// Invalid configs are rejected with a logged error; the previous config stays
// active. OnReload callbacks run after each successful swap.
type Watcher struct {
	path     string
	runtime  *Runtime
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onReload []func(*Config)
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher for the given config path.
func NewWatcher(path string, runtime *Runtime, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create file watcher: %w", err)
	}

	// Watch the directory rather than the file: editors replace files on
	// save, which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		closeErr := fsw.Close()
		if closeErr != nil {
			logger.Warn().Err(closeErr).Msg("failed to close watcher after add error")
		}
		return nil, fmt.Errorf("config: failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		path:    path,
		runtime: runtime,
		watcher: fsw,
		logger:  logger.With().Str("component", "config_watcher").Logger(),
		done:    make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked after each successful reload.
// Must be called before Start.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.onReload = append(w.onReload, fn)
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop terminates the watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("config reload failed, keeping previous config")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Error().Err(err).Msg("config reload rejected, keeping previous config")
		return
	}

	w.runtime.Store(cfg)
	for _, fn := range w.onReload {
		fn(cfg)
	}

	w.logger.Info().Str("path", w.path).Msg("config reloaded")
}
