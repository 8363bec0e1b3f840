package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/config"
	"github.com/gavram/ckan-search/internal/logger"
)

var (
	configPath string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:               "ckan-search",
	Short:             "Index CKAN datasets into Elasticsearch and search them",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runAPI,
}

func Execute() error {
	defer func() {
		if log != nil {
			_ = log.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(indexCmd)
}

func setup(*cobra.Command, []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err = logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	return nil
}
