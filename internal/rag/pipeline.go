package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"docqa/internal/config"
	"docqa/internal/embeddings"
	apperrors "docqa/internal/errors"
	"docqa/internal/llm"
	"docqa/internal/models"
	"docqa/internal/storage"
)

// State is the processing stage of one question.
type State int

const (
	StateReceived State = iota
	StateExpanding
	StateRetrieving
	StateSynthesizing
	StateAnswered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateExpanding:
		return "expanding"
	case StateRetrieving:
		return "retrieving"
	case StateSynthesizing:
		return "synthesizing"
	case StateAnswered:
		return "answered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer is told about every state a question enters.
type Observer func(State)

// Answer is the result of one question.
type Answer struct {
	Text     string
	Variants []string
	Passages []models.Chunk
}

// Pipeline answers questions against a built index.
type Pipeline struct {
	expander        *Expander
	retriever       *Retriever
	synthesizer     *Synthesizer
	includeOriginal bool

	// OnTransition, when set, receives each state change.
	OnTransition Observer
}

func NewPipeline(expander *Expander, retriever *Retriever, synthesizer *Synthesizer, includeOriginal bool) *Pipeline {
	return &Pipeline{
		expander:        expander,
		retriever:       retriever,
		synthesizer:     synthesizer,
		includeOriginal: includeOriginal,
	}
}

// New wires the whole pipeline from configuration. Both model calls run at
// the configured temperature.
func New(cfg config.RAGConfig, llmCfg config.LLMConfig, embedder embeddings.Embedder, client llm.Client, store storage.VectorStore) (*Builder, *Pipeline) {
	opts := llm.Options{Temperature: llmCfg.Temperature, MaxTokens: llmCfg.MaxTokens}
	return NewBuilder(embedder, store), NewPipeline(
		NewExpander(client, opts),
		NewRetriever(embedder, store, cfg.KPerVariant, cfg.MaxPassages),
		NewSynthesizer(client, opts),
		cfg.IncludeOriginal,
	)
}

// Ask runs Received → Expanding → Retrieving → Synthesizing and ends in
// Answered or Failed. A failure only ends this question.
func (p *Pipeline) Ask(ctx context.Context, idx *Index, question string) (*Answer, error) {
	started := time.Now()
	state := StateReceived
	p.enter(state)

	fail := func(err error) (*Answer, error) {
		slog.Error("question failed", "state", state.String(), "error", err)
		p.enter(StateFailed)
		return nil, err
	}

	if idx == nil {
		return fail(apperrors.ErrNoIndex.WithMessage("Upload a PDF before asking questions"))
	}

	state = StateExpanding
	p.enter(state)
	variants, err := p.expander.Expand(ctx, question)
	if err != nil {
		return fail(err)
	}
	queries := QueryVariants(question, variants, p.includeOriginal)

	state = StateRetrieving
	p.enter(state)
	passages, err := p.retriever.Retrieve(ctx, queries, idx)
	if err != nil {
		return fail(err)
	}

	state = StateSynthesizing
	p.enter(state)
	text, err := p.synthesizer.Synthesize(ctx, question, passages)
	if err != nil {
		return fail(err)
	}

	p.enter(StateAnswered)
	slog.Info("question answered",
		"variants", len(queries),
		"passages", len(passages),
		"duration", time.Since(started),
	)

	return &Answer{Text: text, Variants: queries, Passages: passages}, nil
}

func (p *Pipeline) enter(s State) {
	if p.OnTransition != nil {
		p.OnTransition(s)
	}
}

// QueryVariants returns the variant set to search with, putting the original
// question first when includeOriginal is set.
func QueryVariants(question string, variants []string, includeOriginal bool) []string {
	if !includeOriginal {
		return variants
	}
	question = strings.TrimSpace(question)
	out := make([]string, 0, len(variants)+1)
	out = append(out, question)
	for _, v := range variants {
		if v != question {
			out = append(out, v)
		}
	}
	return out
}
