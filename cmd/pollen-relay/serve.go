package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pollenlabs/pollen-relay/internal/di"
	"github.com/pollenlabs/pollen-relay/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pollen-relay server",
	Long: `Start the relay server that accepts prompt requests and forwards them
to the upstream generation service using keys from the managed pool.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to create container")
		return err
	}

	// Resolve the logger first so everything after reports through it.
	loggerSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize")
		return err
	}
	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	serverSvc, err := di.Invoke[*di.ServerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build server")
		return err
	}

	watcherSvc, err := di.Invoke[*di.WatcherService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build config watcher")
		return err
	}
	watcherSvc.Start()

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := container.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}

		close(done)
	}()

	log.Info().
		Str("listen", serverSvc.Server.Addr()).
		Str("version", version.Version).
		Msg("starting pollen-relay")

	if err := serverSvc.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}
