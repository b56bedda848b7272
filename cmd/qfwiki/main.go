// Package main provides the qfwiki content API server and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/config"
	logpkg "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "qfwiki",
	Short:         "QuantFinanceWiki content API",
	Long:          "qfwiki serves the QuantFinanceWiki collections, records blog likes and comments, and builds the sitemap.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a YAML config file (default: config/<ENV>.yaml)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config, or the one for the current ENV.
func loadConfig() (config.Config, string, error) {
	env := config.GetEnv()
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, env, fmt.Errorf("load config: %w", err)
	}
	return cfg, env, nil
}

// setup loads the config and builds the logger shared by every command.
func setup() (config.Config, *zap.Logger, string, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, env, err
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, env, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, env, nil
}
