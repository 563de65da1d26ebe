//go:build fastembed

package embeddings

import (
	"context"
	"fmt"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedder runs an ONNX sentence model in process. The default model is
// all-MiniLM-L6-v2.
type FastEmbedder struct {
	m *fastembed.FlagEmbedding
}

func NewFastEmbedder(model, cacheDir string) (Embedder, error) {
	if model == "" {
		model = string(fastembed.AllMiniLML6V2)
	}
	if cacheDir == "" {
		cacheDir = ".fastembed"
	}
	m, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:    fastembed.EmbeddingModel(model),
		CacheDir: cacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("fastembed init: %w", err)
	}
	return &FastEmbedder{m: m}, nil
}

// Embed encodes a search query.
func (e *FastEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, err := e.m.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	if len(v) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return v, nil
}

// EmbedDocument encodes an indexed passage with the model's passage prefix.
func (e *FastEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	out, err := e.m.PassageEmbed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return out[0], nil
}

func (e *FastEmbedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}
