package rag

import (
	"context"
	"strings"

	apperrors "docqa/internal/errors"
	"docqa/internal/llm"
	"docqa/internal/models"
)

const answerPrompt = `Answer the question based ONLY on the following context:
{context}
Question: {question}
If the context does not contain the answer, say that you don't know. Do not make up an answer.
`

type Synthesizer struct {
	llm  llm.Client
	opts llm.Options
}

func NewSynthesizer(client llm.Client, opts llm.Options) *Synthesizer {
	return &Synthesizer{llm: client, opts: opts}
}

func (s *Synthesizer) Synthesize(ctx context.Context, question string, passages []models.Chunk) (string, error) {
	text, err := s.llm.Complete(ctx, BuildAnswerPrompt(question, passages), s.opts)
	if err != nil {
		return "", apperrors.ErrSynthesis.WithCause(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.ErrSynthesis.WithMessage("Language model returned an empty answer")
	}
	return text, nil
}

// BuildAnswerPrompt fills the grounding template. Passages are separated by
// blank lines in retrieval order.
func BuildAnswerPrompt(question string, passages []models.Chunk) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	r := strings.NewReplacer(
		"{context}", strings.Join(texts, "\n\n"),
		"{question}", question,
	)
	return r.Replace(answerPrompt)
}
