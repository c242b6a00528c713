// Package groq implements inference.Gateway over an OpenAI-compatible
// chat completions API. Groq is the default endpoint.
package groq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/ryhan5/aicademy/internal/inference"
	"github.com/ryhan5/aicademy/internal/logger"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	providerName   = "groq"
)

type Client struct {
	httpClient  *resty.Client
	model       string
	temperature float32
	logger      *logger.Logger
}

// NewClient creates a client for baseURL, or DefaultBaseURL when empty.
func NewClient(apiKey, model, baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.Nop()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Client{
		httpClient:  client,
		model:       model,
		temperature: 0.4,
		logger:      log,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

// GetModel returns the model name configured for this client
func (client *Client) GetModel() string {
	return client.model
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

const systemPrompt = `You generate study material. Follow the requested output format exactly.`

// Generate implements the inference.Gateway interface
func (client *Client) Generate(ctx context.Context, prompt string) (string, error) {
	requestBody := ChatCompletionRequest{
		Model: client.model,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: client.temperature,
	}

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		SetResult(&ChatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return "", &inference.StatusError{
			Provider:   providerName,
			StatusCode: response.StatusCode(),
			Body:       response.String(),
		}
	}

	responseBody := response.Result().(*ChatCompletionResponse)
	if responseBody == nil || len(responseBody.Choices) == 0 {
		return "", fmt.Errorf("empty choices: %s > %w", response.String(), inference.ErrEmptyResponse)
	}

	content := responseBody.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", inference.ErrEmptyResponse
	}
	client.logger.Debug("groq response",
		"model", responseBody.Model,
		"finishReason", responseBody.Choices[0].FinishReason,
		"totalTokens", responseBody.Usage.TotalTokens,
	)
	return content, nil
}
