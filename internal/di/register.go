package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
// 1. Config (no dependencies)
// 2. Logger (depends on Config)
// 3. Cache (depends on Config)
// 4. Pool (depends on Config) - key store, rate tracker, policy, manager
// 5. Metrics (depends on Pool)
// 6. Breaker (depends on Config, Logger)
// 7. Upstream (depends on Config, Logger)
// 8. Relay (depends on Pool, Upstream, Breaker, Cache, Metrics)
// 9. Handler (depends on all above services)
// 10. Watcher (depends on Config, Logger, Handler) - reload hooks
// 11. Server (depends on Handler, Config).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewCache)
	do.Provide(i, NewPool)
	do.Provide(i, NewMetrics)
	do.Provide(i, NewBreaker)
	do.Provide(i, NewUpstream)
	do.Provide(i, NewRelay)
	do.Provide(i, NewHandler)
	do.Provide(i, NewWatcher)
	do.Provide(i, NewHTTPServer)
}
