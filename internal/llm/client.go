// Package llm wraps the language model services used to expand questions and
// write answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docqa/internal/config"
)

// Options tune a single completion. A zero MaxTokens leaves the provider default.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client completes a prompt with text.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// ErrEmptyResponse is returned when the model answers with no text at all.
var ErrEmptyResponse = errors.New("empty response from language model")

// New builds the provider selected by cfg and wraps it with the retry and
// rate limiting policy from the same section.
func New(ctx context.Context, cfg config.LLMConfig) (*Retrying, error) {
	var (
		client Client
		err    error
	)

	switch cfg.Provider {
	case "ollama", "":
		client, err = NewOllamaClient(cfg.BaseURL, cfg.Model)
	case "openai":
		client = NewOpenAIClient(firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")), cfg.BaseURL, cfg.Model)
	case "gemini":
		client, err = NewGeminiClient(ctx, firstNonEmpty(cfg.APIKey, os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")), cfg.Model)
	case "anthropic":
		client, err = NewAnthropicClient(firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY")), cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRetrying(client, RetryPolicy{
		Timeout:           cfg.TimeoutDuration(),
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
