package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pollenlabs/pollen-relay/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check if the pollen-relay server is running",
	Long: `Check the health status of a running pollen-relay server by querying
its /health endpoint.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	listen := cfg.Server.GetListen()
	healthURL := fmt.Sprintf("http://%s/health", listen)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	//nolint:noctx // Simple health check doesn't need context propagation
	resp, err := client.Get(healthURL)
	if err != nil {
		fmt.Printf("✗ pollen-relay is not running (%s)\n", listen)
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("✓ pollen-relay is running (%s)\n", listen)
		return nil
	}

	fmt.Printf("✗ pollen-relay returned unexpected status: %d\n", resp.StatusCode)

	return fmt.Errorf("health check failed with status %d", resp.StatusCode)
}
