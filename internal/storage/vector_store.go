package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"

	"docqa/internal/models"
)

var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when creating a collection twice.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrDimensionMismatch is returned for vectors of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// VectorStore holds named collections of embedded chunks.
//
// CreateCollection is all-or-nothing: on error no part of the collection is
// visible to Search.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, chunks []models.EmbeddedChunk) error
	Search(ctx context.Context, name string, embedding []float32, topK int) ([]models.Chunk, error)
	DeleteCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that are not safe SQL identifiers.
func ValidateCollectionName(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// checkDimensions returns the shared vector length of chunks.
func checkDimensions(chunks []models.EmbeddedChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, errors.New("collection has no chunks")
	}
	dim := len(chunks[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	for i := range chunks {
		if len(chunks[i].Vector) != dim {
			return 0, fmt.Errorf("%w: chunk %s has %d, want %d", ErrDimensionMismatch, chunks[i].ID, len(chunks[i].Vector), dim)
		}
	}
	return dim, nil
}

type memoryCollection struct {
	dim    int
	chunks []models.EmbeddedChunk
}

// MemoryVectorStore keeps collections in process memory and ranks by cosine
// similarity.
type MemoryVectorStore struct {
	collections map[string]*memoryCollection
	mu          sync.RWMutex
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		collections: make(map[string]*memoryCollection),
	}
}

func (m *MemoryVectorStore) CreateCollection(_ context.Context, name string, chunks []models.EmbeddedChunk) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	dim, err := checkDimensions(chunks)
	if err != nil {
		return err
	}

	stored := make([]models.EmbeddedChunk, len(chunks))
	copy(stored, chunks)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.collections[name]; exists {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	m.collections[name] = &memoryCollection{dim: dim, chunks: stored}
	return nil
}

func (m *MemoryVectorStore) Search(_ context.Context, name string, embedding []float32, topK int) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if len(embedding) != col.dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(embedding), col.dim)
	}
	if topK <= 0 {
		return []models.Chunk{}, nil
	}

	type scoredChunk struct {
		chunk *models.EmbeddedChunk
		score float32
	}

	scores := make([]scoredChunk, 0, len(col.chunks))
	for i := range col.chunks {
		scores = append(scores, scoredChunk{
			chunk: &col.chunks[i],
			score: cosineSimilarity(embedding, col.chunks[i].Vector),
		})
	}

	// stable so equal scores keep document order
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if topK > len(scores) {
		topK = len(scores)
	}

	results := make([]models.Chunk, topK)
	for i := 0; i < topK; i++ {
		results[i] = scores[i].chunk.Chunk
	}

	return results, nil
}

func (m *MemoryVectorStore) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	delete(m.collections, name)
	return nil
}

func (m *MemoryVectorStore) HasCollection(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

// Close is a no-op; it lets callers treat both stores alike.
func (m *MemoryVectorStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
