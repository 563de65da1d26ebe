package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"docqa/internal/llm"
	"docqa/internal/models"
	"docqa/internal/storage"
)

// keywordEmbedder maps text onto counts of a few keywords, so similarity is
// predictable without a model.
type keywordEmbedder struct {
	mu     sync.Mutex
	calls  int
	failAt int // 1-based call that fails; 0 never fails
	nanAt  int
	dims   map[int]int // call number -> forced vector length
}

var keywords = []string{"revenue", "cost", "staff"}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()

	if n == e.failAt {
		return nil, errors.New("embedding service unreachable")
	}

	vec := make([]float32, len(keywords)+1)
	lower := strings.ToLower(text)
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	vec[len(keywords)] = 0.1

	if n == e.nanAt {
		vec[0] = float32(math.NaN())
	}
	if d, ok := e.dims[n]; ok {
		vec = vec[:d]
	}
	return vec, nil
}

// scriptedLLM answers expansion and synthesis prompts from fixed scripts.
type scriptedLLM struct {
	mu         sync.Mutex
	variants   string
	answer     string
	expandErr  error
	answerErr  error
	prompts    []string
	lastOption llm.Options
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, opts llm.Options) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.lastOption = opts
	s.mu.Unlock()

	if strings.HasPrefix(prompt, expansionPrompt) {
		return s.variants, s.expandErr
	}
	return s.answer, s.answerErr
}

// countingStore records collection creations on top of the memory store.
type countingStore struct {
	*storage.MemoryVectorStore
	mu      sync.Mutex
	created []string
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryVectorStore: storage.NewMemoryVectorStore()}
}

func (c *countingStore) CreateCollection(ctx context.Context, name string, chunks []models.EmbeddedChunk) error {
	if err := c.MemoryVectorStore.CreateCollection(ctx, name, chunks); err != nil {
		return err
	}
	c.mu.Lock()
	c.created = append(c.created, name)
	c.mu.Unlock()
	return nil
}

func testChunks(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{
			ID:     models.ChunkID("doc", i),
			Source: "doc",
			Seq:    i,
			Page:   1,
			Text:   text,
		}
	}
	return chunks
}
