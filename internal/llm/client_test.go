package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docqa/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	calls   atomic.Int32
	fail    int
	block   bool
	lastOpt Options
}

func (s *scriptedClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	n := s.calls.Add(1)
	s.lastOpt = opts
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if int(n) <= s.fail {
		return "", errors.New("upstream unavailable")
	}
	return "ok: " + prompt, nil
}

func TestOllamaComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"Paris is the capital.","done":true}`))
	}))
	defer server.Close()

	c, err := NewOllamaClient(server.URL, "")
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "capital of France?", Options{MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", text)

	assert.Equal(t, "llama3", got["model"])
	assert.Equal(t, false, got["stream"])
	options, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), options["temperature"])
	assert.Equal(t, float64(64), options["num_predict"])
}

func TestOpenAIComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "forty-two"}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	c := NewOpenAIClient("sk-test", server.URL+"/v1", "")
	text, err := c.Complete(context.Background(), "meaning of life?", Options{})
	require.NoError(t, err)
	assert.Equal(t, "forty-two", text)

	// a zero temperature must still reach the server
	temp, ok := got["temperature"].(float64)
	require.True(t, ok, "temperature missing from request")
	assert.Less(t, temp, 0.001)
}

func TestRetryingRecovers(t *testing.T) {
	inner := &scriptedClient{fail: 2}
	r := NewRetrying(inner, RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond})

	text, err := r.Complete(context.Background(), "q", Options{Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "ok: q", text)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, 0.3, inner.lastOpt.Temperature)
}

func TestRetryingGivesUp(t *testing.T) {
	inner := &scriptedClient{fail: 10}
	r := NewRetrying(inner, RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond})

	_, err := r.Complete(context.Background(), "q", Options{})
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestRetryingPerAttemptTimeout(t *testing.T) {
	inner := &scriptedClient{block: true}
	r := NewRetrying(inner, RetryPolicy{Timeout: 10 * time.Millisecond, Backoff: time.Millisecond})

	start := time.Now()
	_, err := r.Complete(context.Background(), "q", Options{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetryingStopsOnCancel(t *testing.T) {
	inner := &scriptedClient{fail: 10}
	r := NewRetrying(inner, RetryPolicy{MaxRetries: 5, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Complete(ctx, "q", Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRetryingRateLimit(t *testing.T) {
	inner := &scriptedClient{}
	r := NewRetrying(inner, RetryPolicy{RequestsPerSecond: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := r.Complete(context.Background(), "q", Options{})
		require.NoError(t, err)
	}
	// burst of one: the 2nd and 3rd call each wait ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestNewProviders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := New(context.Background(), config.LLMConfig{Provider: "parrot"})
	assert.Error(t, err)

	_, err = New(context.Background(), config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err, "anthropic needs a key")

	_, err = New(context.Background(), config.LLMConfig{Provider: "gemini"})
	assert.Error(t, err, "gemini needs a key")

	c, err := New(context.Background(), config.LLMConfig{Provider: "ollama", MaxRetries: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, c.policy.MaxRetries)
	assert.NoError(t, c.Close())

	c, err = New(context.Background(), config.LLMConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c.next)
}
