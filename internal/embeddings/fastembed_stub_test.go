//go:build !fastembed

package embeddings

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/config"
)

func TestFastEmbedRequiresBuildTag(t *testing.T) {
	_, err := New(context.Background(), config.EmbeddingConfig{Provider: "fastembed"})
	if !errors.Is(err, ErrFastEmbedUnavailable) {
		t.Errorf("Expected ErrFastEmbedUnavailable, got %v", err)
	}
}
