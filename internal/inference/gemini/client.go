// Package gemini implements inference.Gateway with the Google Generative AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ryhan5/aicademy/internal/inference"
	"github.com/ryhan5/aicademy/internal/logger"
)

const providerName = "gemini"

// contentGenerator is the part of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Client struct {
	client  *genai.Client
	model   contentGenerator
	name    string
	timeout time.Duration
	logger  *logger.Logger
}

// NewClient creates a Gemini client for model.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient > %w", err)
	}

	generativeModel := client.GenerativeModel(model)
	generativeModel.SetTemperature(0.4)
	generativeModel.SetTopP(0.95)

	return &Client{
		client:  client,
		model:   generativeModel,
		name:    model,
		timeout: timeout,
		logger:  log,
	}, nil
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GetModel returns the model name configured for this client
func (c *Client) GetModel() string {
	return c.name
}

// Generate implements the inference.Gateway interface
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("model.GenerateContent > %w", classify(err))
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			c.logger.Warn("gemini candidate did not stop normally", "candidate", i, "finishReason", cand.FinishReason.String())
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %s > %w", resp.PromptFeedback.BlockReason.String(), inference.ErrEmptyResponse)
		}
		return "", inference.ErrEmptyResponse
	}
	return text, nil
}

// classify turns API errors into inference.StatusError so retry and
// rate-limit detection work the same way for every provider.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &inference.StatusError{
			Provider:   providerName,
			StatusCode: apiErr.Code,
			Body:       apiErr.Message,
		}
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return &inference.StatusError{
			Provider:   providerName,
			StatusCode: http.StatusTooManyRequests,
			Body:       err.Error(),
		}
	}
	return err
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
