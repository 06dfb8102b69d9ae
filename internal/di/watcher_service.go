package di

import (
	"github.com/samber/do/v2"

	"github.com/pollenlabs/pollen-relay/internal/config"
	"github.com/pollenlabs/pollen-relay/internal/proxy"
)

// WatcherService wraps the config file watcher.
// Watcher creation failure is not fatal: hot reload is optional and the
// service degrades to a nil watcher.
type WatcherService struct {
	Watcher *config.Watcher
}

// NewWatcher creates the config file watcher wired to the runtime config.
// Reloads apply the logging level and the inbound admission limits in place;
// everything else reload-aware reads through RuntimeConfig.Get() per request.
func NewWatcher(i do.Injector) (*WatcherService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	watcher, err := config.NewWatcher(cfgSvc.Path, cfgSvc.Runtime, *logSvc.Logger)
	if err != nil {
		logSvc.Logger.Warn().Err(err).Str("path", cfgSvc.Path).
			Msg("config watcher creation failed, hot reload disabled")
		return &WatcherService{}, nil
	}

	watcher.OnReload(func(cfg *config.Config) {
		proxy.ApplyLogLevel(cfg.Logging)
		handlerSvc.Limits.Apply(cfg.Server)
	})

	return &WatcherService{Watcher: watcher}, nil
}

// Start begins watching. A no-op when the watcher could not be created.
func (w *WatcherService) Start() {
	if w.Watcher != nil {
		w.Watcher.Start()
	}
}

// Shutdown implements do.Shutdowner for graceful watcher cleanup.
func (w *WatcherService) Shutdown() error {
	if w.Watcher != nil {
		return w.Watcher.Stop()
	}
	return nil
}
