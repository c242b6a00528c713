// Package provider builds the configured inference.Gateway.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ryhan5/aicademy/internal/config"
	"github.com/ryhan5/aicademy/internal/inference"
	"github.com/ryhan5/aicademy/internal/inference/gemini"
	"github.com/ryhan5/aicademy/internal/inference/groq"
	"github.com/ryhan5/aicademy/internal/logger"
)

// ErrMissingAPIKey is returned when the selected provider has no credential.
var ErrMissingAPIKey = errors.New("llm api key is not configured")

// Closer releases provider resources.
type Closer func() error

// New returns the gateway for cfg.Provider wrapped with retries, and a func
// releasing the underlying client.
func New(ctx context.Context, cfg config.LLMConfig, log *logger.Logger) (inference.Gateway, Closer, error) {
	if cfg.APIKey() == "" {
		return nil, nil, fmt.Errorf("%s > %w", cfg.Provider, ErrMissingAPIKey)
	}

	var gw inference.Gateway
	var closer Closer
	var model string
	switch cfg.Provider {
	case "groq":
		client := groq.NewClient(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.BaseURL, cfg.Timeout, log)
		gw, closer, model = client, client.Close, client.GetModel()
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Timeout, log)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini.NewClient > %w", err)
		}
		gw, closer, model = client, client.Close, client.GetModel()
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	if log != nil {
		log.Info("llm gateway ready", "provider", cfg.Provider, "model", model, "max_retry_attempts", cfg.MaxRetryAttempts)
	}

	return inference.WithRetry(gw, cfg.MaxRetryAttempts, cfg.RetryDelay, log), closer, nil
}
