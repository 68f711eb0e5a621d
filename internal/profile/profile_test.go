package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileDefaults(t *testing.T) {
	t.Setenv("AIDA_AI_LLM_PROVIDER", "")
	t.Setenv("AIDA_AI_LLM_MODEL", "")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "ollama", p.LLMProvider)
	assert.Equal(t, "http://localhost:11434/v1", p.LLMBaseURL)
	assert.Equal(t, "llama3.1", p.LLMModel)
	assert.Equal(t, "llava", p.LLMVisionModel)
	assert.Equal(t, 5, p.MaxToolRounds)
	assert.Equal(t, p.LLMBaseURL, p.EmbeddingBaseURL)
	assert.True(t, p.MemoryEnabled)
	assert.True(t, p.IsAIEnabled())
	assert.Equal(t, "Aida", p.WakeWord)
	assert.False(t, p.HAEnabled)
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) any
		expected any
	}{
		{
			name:     "openai provider defaults",
			envVar:   "AIDA_AI_LLM_PROVIDER",
			envValue: "openai",
			field:    func(p *Profile) any { return p.LLMBaseURL },
			expected: "https://api.openai.com/v1",
		},
		{
			name:     "explicit model wins",
			envVar:   "AIDA_AI_LLM_MODEL",
			envValue: "qwen2.5",
			field:    func(p *Profile) any { return p.LLMModel },
			expected: "qwen2.5",
		},
		{
			name:     "rss feeds are split",
			envVar:   "AIDA_RSS_FEEDS",
			envValue: "https://a.example/rss, ,https://b.example/atom",
			field:    func(p *Profile) any { return p.RSSFeeds },
			expected: []string{"https://a.example/rss", "https://b.example/atom"},
		},
		{
			name:     "memory can be disabled",
			envVar:   "AIDA_MEMORY_ENABLED",
			envValue: "false",
			field:    func(p *Profile) any { return p.MemoryEnabled },
			expected: false,
		},
		{
			name:     "telegram chat ids parse",
			envVar:   "AIDA_TELEGRAM_CHAT_IDS",
			envValue: "42,abc,7",
			field:    func(p *Profile) any { return p.TelegramChatIDs },
			expected: []int64{42, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.envValue)

			p := &Profile{}
			p.FromEnv()

			assert.Equal(t, tt.expected, tt.field(p))
		})
	}
}

func TestHAEnabledFollowsCredentials(t *testing.T) {
	t.Setenv("AIDA_HA_URL", "http://homeassistant.local:8123")
	t.Setenv("AIDA_HA_TOKEN", "secret")

	p := &Profile{}
	p.FromEnv()
	assert.True(t, p.HAEnabled)
}

func TestValidate(t *testing.T) {
	t.Run("sqlite dsn derived from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "prod", Data: dir, SemanticBackend: "store"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "sqlite", p.Driver)
		assert.Equal(t, filepath.Join(dir, "aida_prod.db"), p.DSN)
		assert.Equal(t, filepath.Join(dir, "embeddings"), p.EmbeddingsDir())
		assert.Equal(t, "store", p.SemanticBackend)
	})

	t.Run("unknown mode falls back to dev", func(t *testing.T) {
		p := &Profile{Mode: "weird", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, "dev", p.Mode)
		assert.Equal(t, "chromem", p.SemanticBackend)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "postgres"}
		assert.Error(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "mysql"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing data dir is created", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "aida")
		p := &Profile{Mode: "dev", Data: dir}
		require.NoError(t, p.Validate())
		assert.DirExists(t, dir)
	})
}
