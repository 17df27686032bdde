// Package extract sends prepared page images to the vision model and
// returns the raw response text. All transport failures surface as
// APIError; response interpretation happens downstream.
package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/beverage-tools/invparse/internal/invoice"
	"github.com/beverage-tools/invparse/internal/prepare"
)

const (
	DefaultModel     = "gpt-4o"
	DefaultMaxTokens = 16384
)

// Config holds the vision client settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	MaxRetries  int           // attempts for the outer retry loop
	RetryDelay  time.Duration // base delay for exponential backoff
	Timeout     time.Duration // HTTP timeout per attempt
	BaseURL     string        // optional (tests)
	HTTPClient  *http.Client  // optional (tests)
	Logger      *slog.Logger
}

// Client calls the OpenAI vision API.
type Client struct {
	model       string
	maxTokens   int64
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
	client      openai.Client
	logger      *slog.Logger
}

// Result is one raw model response plus its accounting metadata.
type Result struct {
	Content          string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	Duration         time.Duration
	RequestID        string
}

// NewClient creates a vision client. Zero config values fall back to the
// defaults.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// The outer retry loop owns retries; the SDK transport does none.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      openai.NewClient(opts...),
		logger:      cfg.Logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Extract sends the prompt plus all page images as a single user message
// and returns the raw response text.
func (c *Client) Extract(ctx context.Context, prompt string, pages []prepare.Page) (*Result, error) {
	if len(pages) == 0 {
		return nil, &invoice.APIError{Reason: "no pages to send"}
	}

	requestID := uuid.New().String()
	start := time.Now()

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(pages)+1)
	parts = append(parts, openai.TextContentPart(prompt))
	for _, page := range pages {
		dataURL := fmt.Sprintf("data:%s;base64,%s", page.MIME, base64.StdEncoding.EncodeToString(page.Data))
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	}

	c.logger.Debug("sending vision request",
		"request_id", requestID, "model", c.model, "pages", len(pages))

	var resp *openai.ChatCompletion
	err := retry.Do(
		func() error {
			var callErr error
			resp, callErr = c.client.Chat.Completions.New(ctx, params)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("vision request failed, retrying",
				"request_id", requestID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, &invoice.APIError{Reason: apiFailureReason(err), Err: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &invoice.APIError{Reason: "empty response content"}
	}

	result := &Result{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Duration:         time.Since(start),
		RequestID:        requestID,
	}

	c.logger.Debug("vision response received",
		"request_id", requestID,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"duration", result.Duration)

	return result, nil
}

// apiFailureReason gives a short label for the failure, pulling the HTTP
// status out of SDK errors when available.
func apiFailureReason(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("request failed with status %d", apiErr.StatusCode)
	}
	return "request failed"
}
