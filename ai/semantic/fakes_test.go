package semantic

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// vocabulary drives bagProvider: one dimension per word plus a bias.
var vocabulary = []string{"coffee", "tea", "weather", "oslo", "music", "project"}

// bagProvider embeds text as word counts over vocabulary.
type bagProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *bagProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return bagOfWords(text), nil
}

func (p *bagProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (p *bagProvider) Model() string   { return "bag" }
func (p *bagProvider) Dimensions() int { return len(vocabulary) + 1 }

func bagOfWords(text string) []float32 {
	vec := make([]float32, len(vocabulary)+1)
	vec[len(vocabulary)] = 0.05
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?")
		for i, v := range vocabulary {
			if word == v {
				vec[i]++
			}
		}
	}
	return vec
}

// mockBackend returns canned results.
type mockBackend struct {
	mu          sync.Mutex
	available   bool
	results     []Result
	searchErr   error
	addErr      error
	added       []Entry
	searchCalls int
	checkCalls  int
	lastK       int
	resets      int
}

func (m *mockBackend) IsAvailable(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkCalls++
	return m.available
}

func (m *mockBackend) Add(_ context.Context, entry Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return "", m.addErr
	}
	m.added = append(m.added, entry)
	return EntryID(entry.MessageID), nil
}

func (m *mockBackend) Search(_ context.Context, _ string, k int) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.lastK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *mockBackend) Delete(context.Context, []int64) error { return nil }

func (m *mockBackend) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added), nil
}

func (m *mockBackend) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.added = nil
	return nil
}

func (m *mockBackend) addedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, len(m.added))
	for i, e := range m.added {
		ids[i] = e.MessageID
	}
	return ids
}

// recordingIDs captures UpdateMessageEmbeddingID calls.
type recordingIDs struct {
	mu    sync.Mutex
	links map[int64]string
}

func (r *recordingIDs) UpdateMessageEmbeddingID(_ context.Context, messageID int64, embeddingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links == nil {
		r.links = map[int64]string{}
	}
	r.links[messageID] = embeddingID
	return nil
}

var errBoom = errors.New("boom")
