package rag

import (
	"context"
	"strings"

	apperrors "docqa/internal/errors"
	"docqa/internal/llm"
)

const expansionPrompt = `You are an AI language model assistant. Your task is to generate different
versions of the given user question to retrieve relevant documents from a vector
database. By generating multiple perspectives on the user question, your goal is
to help the user overcome some of the limitations of the distance-based
similarity search. Provide these alternative questions separated by newlines.
Original question: `

// Expander asks the language model for paraphrases of a question.
type Expander struct {
	llm  llm.Client
	opts llm.Options
}

func NewExpander(client llm.Client, opts llm.Options) *Expander {
	return &Expander{llm: client, opts: opts}
}

// Expand returns the model's variants in the order it produced them. It never
// falls back to the original question: a failed or empty completion is a
// synthesis error.
func (e *Expander) Expand(ctx context.Context, question string) ([]string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrValidation.WithMessage("Question must not be empty")
	}

	text, err := e.llm.Complete(ctx, expansionPrompt+question, e.opts)
	if err != nil {
		return nil, apperrors.ErrSynthesis.WithMessage("Could not generate query variants").WithCause(err)
	}

	variants := ParseVariants(text)
	if len(variants) == 0 {
		return nil, apperrors.ErrSynthesis.WithMessage("Language model returned no query variants")
	}
	return variants, nil
}

// ParseVariants splits a completion into one variant per non-blank line.
func ParseVariants(text string) []string {
	var variants []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			variants = append(variants, line)
		}
	}
	return variants
}
