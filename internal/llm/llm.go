// Package llm talks to an OpenAI-compatible chat backend (such as a local
// Ollama server) to assess the quality of parsed questions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/qanalyzer/internal/llm/prompts"
	"github.com/pavelanni/qanalyzer/internal/model"
	"github.com/pavelanni/qanalyzer/internal/parser"
)

const (
	analysisTemperature = 0.1
	probePrompt         = "Test connection"

	defaultTimeout    = 120 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

var (
	// ErrAnalysisFailed is returned by Analyze when every attempt failed.
	ErrAnalysisFailed = errors.New("analysis failed")

	errUnparseable = errors.New("response could not be parsed")
	errNoChoices   = errors.New("LLM returned no choices")
)

// Config captures the backend settings used by the client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	PromptFile string
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api        *openai.Client
	model      string
	prompts    *prompts.Set
	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithSleeper overrides how the delay between attempts is spent.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates a new LLM client.
func New(cfg Config, opts ...Option) (*Client, error) {
	set, err := prompts.LoadFile(cfg.PromptFile)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: timeout}

	c := &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		prompts:    set,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		sleep:      time.Sleep,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.retryDelay < 0 {
		c.retryDelay = defaultRetryDelay
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Analyze asks the backend to assess q. Transport errors and unparseable
// responses are retried up to the configured number of attempts with a fixed
// delay between them. When every attempt fails the error wraps ErrAnalysisFailed.
func (c *Client) Analyze(ctx context.Context, q model.Question) (*model.AnalysisResult, error) {
	rendered := parser.Format(q)
	prompt, err := c.prompts.BuildAnalysisPrompt(rendered)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		raw, err := c.complete(ctx, prompt, analysisTemperature)
		if err == nil {
			parsed := ParseResponse(raw, rendered)
			if parsed.Outcome != Unparseable {
				slog.Debug("analysis parsed", "question", q.Number, "attempt", attempt, "outcome", parsed.Outcome.String())
				return parsed.Result, nil
			}
			err = errUnparseable
		}
		lastErr = err
		slog.Warn("analysis attempt failed",
			"question", q.Number,
			"attempt", attempt,
			"max_attempts", c.maxRetries,
			"error", err,
		)
		if attempt < c.maxRetries && c.retryDelay > 0 {
			c.sleep(c.retryDelay)
		}
	}
	return nil, fmt.Errorf("%w: question %d after %d attempts: %w", ErrAnalysisFailed, q.Number, c.maxRetries, lastErr)
}

// Ping sends a minimal prompt to verify that the backend and model respond.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.complete(ctx, probePrompt, 0); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	return nil
}

// Reachable reports whether Ping succeeds.
func (c *Client) Reachable(ctx context.Context) bool {
	if err := c.Ping(ctx); err != nil {
		slog.Warn("LLM backend unreachable", "model", c.model, "error", err)
		return false
	}
	return true
}

// Models lists the model identifiers exposed by the backend.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}
