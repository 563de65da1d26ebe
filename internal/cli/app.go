package cli

import (
	"context"
	"fmt"
	"log/slog"

	"docqa/internal/assistant"
	"docqa/internal/config"
	"docqa/internal/credentials"
	"docqa/internal/embeddings"
	"docqa/internal/ingest"
	"docqa/internal/llm"
	"docqa/internal/rag"
	"docqa/internal/session"
	"docqa/internal/storage"
)

type vectorStore interface {
	storage.VectorStore
	Close() error
}

// app holds the wired service and everything that must be closed with it.
type app struct {
	service  *assistant.Service
	builder  *rag.Builder
	store    vectorStore
	embedder embeddings.Embedder
	llm      *llm.Retrying
}

func openStore(cfg config.DatabaseConfig) (vectorStore, error) {
	switch cfg.Driver {
	case "memory":
		return storage.NewMemoryVectorStore(), nil
	default:
		return storage.NewSQLiteVectorStore(cfg.Path)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	embedder, err := embeddings.New(ctx, cfg.Services.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embeddings: %w", err)
	}

	client, err := llm.New(ctx, cfg.Services.LLM)
	if err != nil {
		_ = embeddings.Close(embedder)
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	chunker, err := ingest.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		_ = client.Close()
		_ = embeddings.Close(embedder)
		_ = store.Close()
		return nil, err
	}

	builder, pipeline := rag.New(cfg.RAG, cfg.Services.LLM, embedder, client, store)
	pipeline.OnTransition = func(s rag.State) {
		slog.Debug("question state", "state", s.String())
	}

	svc := assistant.NewService(
		credentials.NewStore(cfg.Credentials.Path),
		session.NewManager(),
		ingest.PDFExtractor{},
		chunker,
		builder,
		pipeline,
	)

	slog.Info("docqa initialized",
		"store", cfg.Database.Driver,
		"embedding_provider", cfg.Services.Embedding.Provider,
		"llm_provider", cfg.Services.LLM.Provider,
		"llm_model", cfg.Services.LLM.Model,
	)

	return &app{
		service:  svc,
		builder:  builder,
		store:    store,
		embedder: embedder,
		llm:      client,
	}, nil
}

// Close tears down open sessions and releases clients and storage.
func (a *app) Close(ctx context.Context) {
	a.service.Shutdown(ctx)
	if err := a.llm.Close(); err != nil {
		slog.Warn("closing language model client", "error", err)
	}
	if err := embeddings.Close(a.embedder); err != nil {
		slog.Warn("closing embedder", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Error("closing vector store", "error", err)
	}
}
