package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Provider turns text into vectors.
type Provider interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the requested vector dimension, 0 for the model default.
	Dimensions() int
}

// Config configures an OpenAI-compatible embeddings endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig targets a local Ollama install.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434/v1",
		Model:      "nomic-embed-text",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

type provider struct {
	client     *openai.Client
	model      string
	dimensions int
	maxRetries int
	timeout    time.Duration
}

// NewProvider creates a Provider. Zero values in cfg take defaults.
func NewProvider(cfg *Config) (Provider, error) {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaults.Model
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaults.MaxRetries
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(baseURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &provider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: maxRetries,
		timeout:    timeout,
	}, nil
}

func (p *provider) Model() string {
	return p.model
}

func (p *provider) Dimensions() int {
	return p.dimensions
}

func (p *provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (p *provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	}

	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			slog.Debug("embedding request failed", "attempt", attempt+1, "error", err)
			continue
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
		}

		vectors := make([][]float32, len(texts))
		for _, data := range resp.Data {
			if data.Index < 0 || data.Index >= len(vectors) {
				return nil, fmt.Errorf("embedding index %d out of range", data.Index)
			}
			vectors[data.Index] = data.Embedding
		}
		return vectors, nil
	}
	return nil, fmt.Errorf("create embeddings failed after %d attempts: %w", p.maxRetries, lastErr)
}
