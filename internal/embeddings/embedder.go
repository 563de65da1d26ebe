// Package embeddings maps text to fixed-length vectors through one of several
// embedding services.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docqa/internal/config"
)

// Embedder is a text-embedding provider. Implementations must return vectors
// of a constant length for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentEmbedder is implemented by models that encode indexed passages
// differently from search queries. Embed is then the query side.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("no embedding returned")

// EmbedDocument embeds text for storage in an index.
func EmbedDocument(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if d, ok := e.(DocumentEmbedder); ok {
		return d.EmbedDocument(ctx, text)
	}
	return e.Embed(ctx, text)
}

// New builds the embedder selected by cfg.Provider. Every call is bounded by
// cfg's timeout.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	e, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return WithTimeout(e, cfg.TimeoutDuration()), nil
}

func newProvider(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	timeout := cfg.TimeoutDuration()

	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, timeout)
	case "openai":
		return NewOpenAIEmbedder(firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")), cfg.BaseURL, cfg.Model), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, firstNonEmpty(cfg.APIKey, os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")), cfg.Model)
	case "fastembed":
		return NewFastEmbedder(cfg.Model, cfg.CacheDir)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Close releases provider resources when the embedder holds any.
func Close(e Embedder) error {
	if c, ok := e.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
