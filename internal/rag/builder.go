// Package rag implements the question-answering pipeline: indexing a
// document's chunks, expanding a question into variants, retrieving passages
// and synthesizing a grounded answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/embeddings"
	apperrors "docqa/internal/errors"
	"docqa/internal/models"
	"docqa/internal/storage"
)

// CollectionPrefix starts the name of every collection this package creates.
const CollectionPrefix = "docqa_"

// Index is a handle to one document's stored collection.
type Index struct {
	Collection string
	Dimension  int
	Chunks     int
	CreatedAt  time.Time
}

// Builder embeds chunks and stores them as a fresh collection.
type Builder struct {
	embedder embeddings.Embedder
	store    storage.VectorStore
}

func NewBuilder(embedder embeddings.Embedder, store storage.VectorStore) *Builder {
	return &Builder{embedder: embedder, store: store}
}

// Build embeds every chunk before writing anything, then creates the
// collection in one step. On error nothing is left to query.
func (b *Builder) Build(ctx context.Context, chunks []models.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, apperrors.ErrIngest.WithMessage("Document has no text to index")
	}

	embedded := make([]models.EmbeddedChunk, len(chunks))
	dim := 0
	for i, c := range chunks {
		vec, err := embeddings.EmbedDocument(ctx, b.embedder, c.Text)
		if err != nil {
			return nil, apperrors.ErrEmbedding.WithCause(fmt.Errorf("chunk %s: %w", c.ID, err))
		}
		if err := checkVector(vec, dim); err != nil {
			return nil, apperrors.ErrEmbedding.WithCause(fmt.Errorf("chunk %s: %w", c.ID, err))
		}
		dim = len(vec)
		embedded[i] = models.EmbeddedChunk{Chunk: c, Vector: vec}
	}

	name := NewCollectionName()
	if err := b.store.CreateCollection(ctx, name, embedded); err != nil {
		return nil, apperrors.ErrIndex.WithCause(err)
	}

	slog.Info("index built", "collection", name, "chunks", len(embedded), "dimension", dim)

	return &Index{
		Collection: name,
		Dimension:  dim,
		Chunks:     len(embedded),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Delete removes the index's collection. A nil or already removed index
// yields ErrNoIndex.
func (b *Builder) Delete(ctx context.Context, idx *Index) error {
	if idx == nil {
		return apperrors.ErrNoIndex
	}
	err := b.store.DeleteCollection(ctx, idx.Collection)
	switch {
	case err == nil:
		slog.Info("index deleted", "collection", idx.Collection)
		return nil
	case errors.Is(err, storage.ErrCollectionNotFound):
		return apperrors.ErrNoIndex.WithCause(err)
	default:
		return apperrors.ErrIndex.WithCause(err)
	}
}

// Prune deletes collections created by this package that no live index owns.
// Stores that cannot list their collections are left alone.
func (b *Builder) Prune(ctx context.Context, live map[string]bool) (int, error) {
	lister, ok := b.store.(interface {
		Collections(ctx context.Context) ([]string, error)
	})
	if !ok {
		return 0, nil
	}

	names, err := lister.Collections(ctx)
	if err != nil {
		return 0, apperrors.ErrIndex.WithCause(err)
	}

	removed := 0
	for _, name := range names {
		if !strings.HasPrefix(name, CollectionPrefix) || live[name] {
			continue
		}
		if err := b.store.DeleteCollection(ctx, name); err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
			return removed, apperrors.ErrIndex.WithCause(err)
		}
		removed++
	}
	if removed > 0 {
		slog.Info("pruned orphaned collections", "count", removed)
	}
	return removed, nil
}

// NewCollectionName returns a collection name unique to one upload.
func NewCollectionName() string {
	return CollectionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// checkVector rejects empty vectors, NaN or infinite components and a length
// different from want (when want is non-zero).
func checkVector(vec []float32, want int) error {
	if len(vec) == 0 {
		return embeddings.ErrEmptyEmbedding
	}
	if want != 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(vec), want)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}
