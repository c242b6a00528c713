package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ryhan5/aicademy/internal/config"
)

var (
	configFile string
	serverURL  string
	timeout    time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aicademy",
		Short:         "Create courses and generate study content on an aicademy server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("godotenv.Load(.env) > %w", err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("AICADEMY_CONFIG"), "config file (default: ./config.yml or $HOME/.config/aicademy/config.yml)")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default: server.base_url from the config)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "per request timeout")

	cmd.AddCommand(newCourseCommand())
	cmd.AddCommand(newGenerateCommand())
	cmd.AddCommand(newEnqueueCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newPollCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
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

// newClient resolves the server URL from the flag or the config.
func newClient() (*apiClient, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	baseURL := serverURL
	if baseURL == "" {
		baseURL = cfg.Server.BaseURL
	}
	return newAPIClient(baseURL, timeout), cfg, nil
}
