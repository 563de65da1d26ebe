//go:build !fastembed

package embeddings

import "errors"

// ErrFastEmbedUnavailable is returned by binaries built without the fastembed tag.
var ErrFastEmbedUnavailable = errors.New("fastembed support not included; rebuild with -tags fastembed")

func NewFastEmbedder(_, _ string) (Embedder, error) {
	return nil, ErrFastEmbedUnavailable
}
