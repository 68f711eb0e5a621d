package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:11434/v1", cfg.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.Model)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestNewProviderFillsDefaults(t *testing.T) {
	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", p.Model())
	assert.Zero(t, p.Dimensions())

	p, err = NewProvider(&Config{Model: "text-embedding-3-small", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", p.Model())
	assert.Equal(t, 256, p.Dimensions())
}

func embeddingsServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			http.Error(w, `{"error":{"message":"busy"}}`, http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Answer out of order to check index handling.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), float32(len(req.Input[i]))},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestEmbedBatch(t *testing.T) {
	server, _ := embeddingsServer(t, 0)
	p, err := NewProvider(&Config{BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	vectors, err := p.EmbedBatch(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 1}, vectors[0])
	assert.Equal(t, []float32{1, 3}, vectors[1])

	_, err = p.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestEmbedRetries(t *testing.T) {
	server, calls := embeddingsServer(t, 1)
	p, err := NewProvider(&Config{BaseURL: server.URL, Model: "m", MaxRetries: 2})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 5}, vec)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestEmbedGivesUp(t *testing.T) {
	server, _ := embeddingsServer(t, 10)
	p, err := NewProvider(&Config{BaseURL: server.URL, Model: "m", MaxRetries: 2})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	assert.Error(t, err)
}
