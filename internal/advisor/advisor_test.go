package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/trade-guardian/pkg/types"
)

var testSummary = Summary{
	Pair:            "ETH/USDC",
	PriceImpact:     0.314,
	Health:          types.Safe,
	SuggestedAction: "This trade looks efficient. Proceed with confidence.",
}

type fakeAnnotator struct {
	calls   atomic.Int32
	failFor int32
	text    string
}

func (f *fakeAnnotator) Annotate(ctx context.Context, s Summary) (string, error) {
	n := f.calls.Add(1)
	if n <= f.failFor {
		return "", errors.New("upstream down")
	}
	return f.text, nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string]string
	err   error
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, s Summary) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	text, ok := c.items[CacheKey(s)]
	return text, ok, nil
}

func (c *memCache) Set(ctx context.Context, s Summary, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.items[CacheKey(s)] = text
	return nil
}

func fastConfig() Config {
	return Config{Enabled: true, MaxRetries: 2, RetryBackoff: time.Millisecond, Timeout: time.Second}
}

func TestPrompt(t *testing.T) {
	p := Prompt(testSummary)
	assert.Contains(t, p, "Pair: ETH/USDC")
	assert.Contains(t, p, "Price Impact: 0.31%")
	assert.Contains(t, p, "Health Status: SAFE")
	assert.Contains(t, p, "Suggested Action: This trade looks efficient.")
	assert.Contains(t, p, "Sandwich Attacks")
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "advice:ETH/USDC:Safe:3", CacheKey(testSummary))

	near := testSummary
	near.PriceImpact = 0.33
	assert.Equal(t, CacheKey(testSummary), CacheKey(near))

	risky := testSummary
	risky.Health = types.Risky
	assert.NotEqual(t, CacheKey(testSummary), CacheKey(risky))
}

func TestAdviseDisabled(t *testing.T) {
	ann := &fakeAnnotator{text: "hello"}
	cfg := fastConfig()
	cfg.Enabled = false

	assert.Equal(t, FallbackAdvice, New(cfg, ann, nil).Advise(context.Background(), testSummary))
	assert.Equal(t, FallbackAdvice, New(fastConfig(), nil, nil).Advise(context.Background(), testSummary))
	assert.Zero(t, ann.calls.Load())
}

func TestAdviseRetriesThenSucceeds(t *testing.T) {
	ann := &fakeAnnotator{failFor: 2, text: "  Deep pool, go ahead.  "}
	got := New(fastConfig(), ann, nil).Advise(context.Background(), testSummary)
	assert.Equal(t, "Deep pool, go ahead.", got)
	assert.Equal(t, int32(3), ann.calls.Load())
}

func TestAdviseFallbackAfterRetries(t *testing.T) {
	ann := &fakeAnnotator{failFor: 100}
	got := New(fastConfig(), ann, nil).Advise(context.Background(), testSummary)
	assert.Equal(t, FallbackAdvice, got)
	assert.Equal(t, int32(3), ann.calls.Load())
}

func TestAdviseCancelledContext(t *testing.T) {
	ann := &fakeAnnotator{text: "never"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, FallbackAdvice, New(fastConfig(), ann, nil).Advise(ctx, testSummary))
	assert.Zero(t, ann.calls.Load())
}

func TestAdviseEmptyTextIsPending(t *testing.T) {
	ann := &fakeAnnotator{text: "   "}
	cache := newMemCache()

	got := New(fastConfig(), ann, cache).Advise(context.Background(), testSummary)
	assert.Equal(t, PendingAdvice, got)
	assert.Empty(t, cache.items)
}

func TestAdviseUsesCache(t *testing.T) {
	ann := &fakeAnnotator{text: "Fresh advice."}
	cache := newMemCache()
	adv := New(fastConfig(), ann, cache)

	assert.Equal(t, "Fresh advice.", adv.Advise(context.Background(), testSummary))
	assert.Equal(t, "Fresh advice.", cache.items[CacheKey(testSummary)])

	assert.Equal(t, "Fresh advice.", adv.Advise(context.Background(), testSummary))
	assert.Equal(t, int32(1), ann.calls.Load())
}

func TestAdviseIgnoresCacheErrors(t *testing.T) {
	ann := &fakeAnnotator{text: "Still works."}
	cache := newMemCache()
	cache.err = errors.New("connection refused")

	assert.Equal(t, "Still works.", New(fastConfig(), ann, cache).Advise(context.Background(), testSummary))
}

func TestGeminiAnnotate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gen := body["generationConfig"].(map[string]any)
		thinking := gen["thinkingConfig"].(map[string]any)
		assert.Equal(t, 0.0, thinking["thinkingBudget"])

		contents := body["contents"].([]any)
		parts := contents[0].(map[string]any)["parts"].([]any)
		assert.Contains(t, parts[0].(map[string]any)["text"], "Pair: ETH/USDC")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Low impact. "},{"text":"Proceed."}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: srv.URL + "/", APIKey: "secret", Model: "test-model"})
	require.NoError(t, err)

	text, err := client.Annotate(context.Background(), testSummary)
	require.NoError(t, err)
	assert.Equal(t, "Low impact. Proceed.", text)
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	got := New(fastConfig(), client, nil).Advise(context.Background(), testSummary)
	assert.Equal(t, PendingAdvice, got)
}

func TestGeminiServerErrorFallsBack(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(GeminiConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Annotate(context.Background(), testSummary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	cfg := fastConfig()
	cfg.MaxRetries = 1
	got := New(cfg, client, nil).Advise(context.Background(), testSummary)
	assert.Equal(t, FallbackAdvice, got)
	assert.Equal(t, int32(3), hits.Load())
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(GeminiConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
