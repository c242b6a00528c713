package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ryhan5/aicademy/internal/config"
	"github.com/ryhan5/aicademy/internal/logger"
)

var (
	configFile string
	debugMode  bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	cmd := &cobra.Command{
		Use:           "aicademy-server",
		Short:         "Serve AI study content generation for courses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv(".env")
		},
		RunE: serve.RunE,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("AICADEMY_CONFIG"), "config file (default: ./config.yml or $HOME/.config/aicademy/config.yml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(newWorkerCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

// loadDotEnv loads path into the environment when it exists. Variables that
// are already set are kept.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("godotenv.Load(%s) > %w", path, err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.Log.Mode, debugMode || cfg.Log.Level == "debug")
	if err != nil {
		return nil, fmt.Errorf("logger.New() > %w", err)
	}
	return log, nil
}

// setup loads the configuration and logger shared by every command.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
