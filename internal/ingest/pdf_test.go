package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "docqa/internal/errors"
	"docqa/internal/ingest/ingesttest"
)

func TestExtractTwoPages(t *testing.T) {
	ext, err := PDFExtractor{}.Extract(context.Background(), ingesttest.PDF("Hello from page one", "Goodbye from page two"))
	require.NoError(t, err)

	assert.Equal(t, 2, ext.PageCount)
	require.Len(t, ext.Blocks, 2)
	assert.Equal(t, 1, ext.Blocks[0].Page)
	assert.Contains(t, ext.Blocks[0].Text, "Hello from page one")
	assert.Equal(t, 2, ext.Blocks[1].Page)
	assert.Contains(t, ext.Blocks[1].Text, "Goodbye from page two")
}

func TestExtractSkipsBlankPages(t *testing.T) {
	ext, err := PDFExtractor{}.Extract(context.Background(), ingesttest.PDF("", "Only text"))
	require.NoError(t, err)

	assert.Equal(t, 2, ext.PageCount)
	require.Len(t, ext.Blocks, 1)
	assert.Equal(t, 2, ext.Blocks[0].Page)
}

func TestExtractNoText(t *testing.T) {
	_, err := PDFExtractor{}.Extract(context.Background(), ingesttest.PDF(""))
	assert.ErrorIs(t, err, apperrors.ErrIngest)
}

func TestExtractInvalidBytes(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"plain":     []byte("this is not a pdf"),
		"truncated": ingesttest.PDF("Hello")[:40],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := PDFExtractor{}.Extract(context.Background(), data)
			assert.ErrorIs(t, err, apperrors.ErrIngest)
		})
	}
}
