package rag

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"docqa/internal/embeddings"
	apperrors "docqa/internal/errors"
	"docqa/internal/models"
	"docqa/internal/storage"
)

// Retriever searches an index with every query variant and merges the hits.
type Retriever struct {
	embedder    embeddings.Embedder
	store       storage.VectorStore
	k           int
	maxPassages int
}

// NewRetriever returns a retriever taking k hits per variant. maxPassages caps
// the merged set; zero leaves it unbounded.
func NewRetriever(embedder embeddings.Embedder, store storage.VectorStore, k, maxPassages int) *Retriever {
	return &Retriever{embedder: embedder, store: store, k: k, maxPassages: maxPassages}
}

// Retrieve runs one search per variant concurrently, after checking that the
// index still exists. Results are merged only
// after all searches finish, keeping the first occurrence of each chunk in
// variant order, then rank order.
func (r *Retriever) Retrieve(ctx context.Context, variants []string, idx *Index) ([]models.Chunk, error) {
	if idx == nil {
		return nil, apperrors.ErrNoIndex
	}
	ok, err := r.store.HasCollection(ctx, idx.Collection)
	if err != nil {
		return nil, apperrors.ErrIndex.WithCause(err)
	}
	if !ok {
		return nil, apperrors.ErrNoIndex.WithMessage("Document index no longer exists")
	}

	hits := make([][]models.Chunk, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			res, err := r.search(gctx, variant, idx)
			if err != nil {
				return err
			}
			hits[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Merge(hits, r.maxPassages), nil
}

func (r *Retriever) search(ctx context.Context, variant string, idx *Index) ([]models.Chunk, error) {
	vec, err := r.embedder.Embed(ctx, variant)
	if err != nil {
		return nil, apperrors.ErrEmbedding.WithCause(err)
	}
	if err := checkVector(vec, idx.Dimension); err != nil {
		return nil, apperrors.ErrEmbedding.WithCause(err)
	}

	res, err := r.store.Search(ctx, idx.Collection, vec, r.k)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, storage.ErrCollectionNotFound):
		return nil, apperrors.ErrNoIndex.WithCause(err)
	case errors.Is(err, storage.ErrDimensionMismatch):
		return nil, apperrors.ErrEmbedding.WithCause(err)
	default:
		return nil, apperrors.ErrIndex.WithCause(err)
	}
}

// Merge flattens per-variant results, dropping repeated chunk IDs. limit <= 0
// means no cap.
func Merge(hits [][]models.Chunk, limit int) []models.Chunk {
	seen := make(map[string]struct{})
	merged := make([]models.Chunk, 0)
	for _, res := range hits {
		for _, c := range res {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			merged = append(merged, c)
			if limit > 0 && len(merged) == limit {
				return merged
			}
		}
	}
	return merged
}
