// Package cli implements the docqa command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/logging"
)

// configPath is the --config flag shared by all commands.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about a PDF",
	Long: `docqa indexes an uploaded PDF and answers questions about it using
query expansion, vector retrieval and a language model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configuration and installs the logger it describes.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(os.Stderr, cfg.App)
	return cfg, nil
}
