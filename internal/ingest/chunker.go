package ingest

import (
	"fmt"
	"unicode"

	"docqa/internal/models"
)

const (
	DefaultChunkSize    = 7500
	DefaultChunkOverlap = 100
)

// blockSeparator joins page blocks so a page break is also a paragraph break.
const blockSeparator = "\n\n"

// Chunker splits text greedily into chunks of at most size runes. Each chunk
// ends at the largest structural boundary found at or before the limit and
// every chunk after the first starts overlap runes before the previous end.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates size > 0 and 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits the blocks of one source document. Chunk IDs are derived from
// source and position, so the output is identical for identical input.
func (c *Chunker) Chunk(source string, blocks []TextBlock) []models.Chunk {
	text, pages := joinBlocks(blocks)
	if len(text) == 0 {
		return nil
	}

	spans := c.split(text)
	chunks := make([]models.Chunk, 0, len(spans))
	for seq, sp := range spans {
		chunks = append(chunks, models.Chunk{
			ID:     models.ChunkID(source, seq),
			Source: source,
			Seq:    seq,
			Page:   pageAt(pages, sp.start),
			Start:  sp.start,
			End:    sp.end,
			Text:   string(text[sp.start:sp.end]),
		})
	}
	return chunks
}

type span struct{ start, end int }

func (c *Chunker) split(text []rune) []span {
	n := len(text)
	var spans []span
	start := 0
	for {
		end := n
		if n-start > c.size {
			end = c.breakPoint(text, start, start+c.size)
		}
		spans = append(spans, span{start, end})
		if end >= n {
			return spans
		}
		start = end - c.overlap
	}
}

// boundaries are tried in order; each reports whether a chunk may end at i.
var boundaries = []func(text []rune, i int) bool{
	isParagraphEnd,
	isSentenceEnd,
	isWordEnd,
}

// breakPoint picks the chunk end in (start+overlap, limit]. The lower bound
// guarantees the next chunk starts after this one.
func (c *Chunker) breakPoint(text []rune, start, limit int) int {
	lowest := start + c.overlap + 1
	for _, ok := range boundaries {
		for i := limit; i >= lowest; i-- {
			if ok(text, i) {
				return i
			}
		}
	}
	return limit
}

func isParagraphEnd(text []rune, i int) bool {
	return i >= 2 && text[i-1] == '\n' && text[i-2] == '\n'
}

func isSentenceEnd(text []rune, i int) bool {
	if i < 1 {
		return false
	}
	if text[i-1] == '\n' {
		return true
	}
	if i < 2 || !unicode.IsSpace(text[i-1]) {
		return false
	}
	switch text[i-2] {
	case '.', '!', '?':
		return true
	}
	return false
}

func isWordEnd(text []rune, i int) bool {
	return i >= 1 && unicode.IsSpace(text[i-1])
}

type pageStart struct {
	offset int
	page   int
}

func joinBlocks(blocks []TextBlock) ([]rune, []pageStart) {
	var (
		text  []rune
		pages []pageStart
	)
	for _, b := range blocks {
		if b.Text == "" {
			continue
		}
		if len(text) > 0 {
			text = append(text, []rune(blockSeparator)...)
		}
		pages = append(pages, pageStart{offset: len(text), page: b.Page})
		text = append(text, []rune(b.Text)...)
	}
	return text, pages
}

func pageAt(pages []pageStart, offset int) int {
	page := 0
	for _, p := range pages {
		if p.offset > offset {
			break
		}
		page = p.page
	}
	return page
}
