// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-coordinator CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-coordinator/internal/logging"
	"github.com/pdiddy/research-coordinator/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets secrets.Secrets
	// logger is the process logger, configured before any command runs.
	logger = slog.Default()
)

// rootCmd is the base command for the research-coordinator CLI.
var rootCmd = &cobra.Command{
	Use:   "research-coordinator",
	Short: "Quality-gated research reports from many data sources",
	Long: `research-coordinator drafts a structured research report from academic,
encyclopedia, and web sources, has it critiqued, and revises it until the
critique score meets the quality threshold or the revision budget runs out.

Every task is persisted to a local SQLite database together with its report
history, critique feedback, and agent audit log.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(viper.GetString("log.level"), os.Stderr)
		slog.SetDefault(logger)

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", slog.Any("keys", s.Names()))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-coordinator.yaml or ~/.config/research-coordinator/research-coordinator.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default data/research.db)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-coordinator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-coordinator"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_COORDINATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
