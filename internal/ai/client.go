// Package ai talks to an OpenAI-compatible chat completion endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is used when the configuration names no endpoint.
	DefaultBaseURL  = "https://api.openai.com"
	completionsPath = "/v1/chat/completions"
	// MaxSummaryTokens bounds non-streaming completions.
	MaxSummaryTokens = 1024
)

var (
	ErrNotConfigured = errors.NewSentinel("no completion endpoint configured")
	ErrBadStatus     = errors.NewSentinel("completion endpoint returned an error status")
	ErrNoBody        = errors.NewSentinel("completion endpoint returned no body")
	ErrNoChoices     = errors.NewSentinel("completion without choices")
)

type Client struct {
	cfg        models.LLMConfig
	httpClient *http.Client
	client     *openai.Client
	logger     *slog.Logger
}

// NewClient creates a client for cfg. A nil httpClient means http.DefaultClient.
func NewClient(cfg models.LLMConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL + "/v1"
	openaiConfig.HTTPClient = httpClient

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		client:     openai.NewClientWithConfig(openaiConfig),
		logger:     logger.With("source", "AIClient"),
	}
}

// Configured reports whether an API key is set. Without one no request is ever made.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

func (c *Client) request(messages []openai.ChatCompletionMessage, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
		Model:       c.cfg.Model,
		Messages:    messages,
		Stream:      stream,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	}
}

// StreamCompletion starts a streaming completion and returns the raw response body. The caller must close it.
//
// The body is handed out undecoded so that frames other than data events survive. A non-2xx status or a
// missing body is an error.
func (c *Client) StreamCompletion(
	ctx context.Context,
	messages []openai.ChatCompletionMessage,
) (io.ReadCloser, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(c.request(messages, true))
	if err != nil {
		return nil, errors.Wrap(err, "marshal completion request")
	}
	url := c.cfg.BaseURL + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "new completion request", slog.String("url", url))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.logger.LogAttrs(ctx, slog.LevelDebug, "requesting completion stream",
		slog.String("model", c.cfg.Model), slog.Int("messages", len(messages)))

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do completion request", slog.String("url", url))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		// Best effort, the error body helps diagnose bad keys and model names.
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512)) //nolint:mnd // enough for an error message
		_ = res.Body.Close()
		return nil, errors.Wrap(ErrBadStatus, "completion request rejected",
			slog.Int("status", res.StatusCode), slog.String("body", string(snippet)))
	}
	if res.Body == nil || res.Body == http.NoBody {
		return nil, ErrNoBody
	}
	return res.Body, nil
}

// Completion runs a non-streaming completion and returns the content of the first choice.
func (c *Client) Completion(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	req := c.request(messages, false)
	req.MaxTokens = MaxSummaryTokens
	completion, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "create chat completion", slog.String("model", c.cfg.Model))
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "completion done",
		slog.Int("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens))
	return completion.Choices[0].Message.Content, nil
}
