// Package main is the entry point for pollen-relay.
package main

import (
	"context"
	"os"
	"path/filepath"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "config.yaml"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pollen-relay",
	Short: "API key relay for text generation services",
	Long: `pollen-relay sits between callers and a text generation service,
forwarding prompt requests with credentials drawn from a managed pool of
upstream API keys. Keys rotate per request, cool down on failure, and are
disabled when the upstream rejects them, so callers never handle or see a
credential.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/pollen-relay/"+defaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

// findConfigFile searches for config.yaml in default locations.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "pollen-relay", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return defaultConfigFile // Default, will error if not found
}
