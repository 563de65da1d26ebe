package embeddings

import (
	"context"
	"fmt"
	"time"
)

// Bounded fails any call to the wrapped embedder that runs past its timeout.
// Providers that ignore ctx are abandoned rather than waited for.
type Bounded struct {
	next    Embedder
	timeout time.Duration
}

// WithTimeout bounds next; a non-positive timeout returns next unchanged.
func WithTimeout(next Embedder, timeout time.Duration) Embedder {
	if timeout <= 0 {
		return next
	}
	return &Bounded{next: next, timeout: timeout}
}

func (b *Bounded) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.call(ctx, func(ctx context.Context) ([]float32, error) {
		return b.next.Embed(ctx, text)
	})
}

func (b *Bounded) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return b.call(ctx, func(ctx context.Context) ([]float32, error) {
		return EmbedDocument(ctx, b.next, text)
	})
}

func (b *Bounded) call(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := fn(ctx)
		done <- result{vec, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return nil, b.expired(ctx)
		}
		return r.vec, r.err
	case <-ctx.Done():
		return nil, b.expired(ctx)
	}
}

func (b *Bounded) expired(ctx context.Context) error {
	return fmt.Errorf("embedding request abandoned after %s: %w", b.timeout, ctx.Err())
}

// Close closes the wrapped embedder.
func (b *Bounded) Close() error {
	return Close(b.next)
}
