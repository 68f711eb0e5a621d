package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration the assistant is started with.
// Flags and viper fill the server fields; FromEnv fills the rest.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	LLMProvider    string // ollama, openai, deepseek, openrouter
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMVisionModel string
	LLMTimeout     int // seconds
	LLMTemperature float32
	SystemPrompt   string
	MaxToolRounds  int

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Memory
	MemoryEnabled          bool
	IncludeSemanticContext bool
	MaxSemanticResults     int
	SemanticBackend        string // chromem, store
	EmbeddingQueueSize     int
	EmbeddingRatePerSecond float64

	// Tasks
	TasksEnabled     bool
	SpeakReminders   bool
	ReminderInterval int // seconds
	// ReminderWebhookURL receives every delivered reminder as JSON.
	ReminderWebhookURL string

	// Conversation
	WakeWord       string
	SpeakResponses bool

	// Integrations
	HAEnabled       bool
	HAURL           string
	HAToken         string
	RSSFeeds        []string
	MailEnabled     bool
	CalendarEnabled bool
	TelegramToken   string
	TelegramChatIDs []int64
	DocumentsDir    string

	// API server
	APISecret       string
	APIPasswordHash string

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

// Provider default configurations for LLM.
// Used when the base URL or model is not set explicitly.
var llmProviderDefaults = map[string]struct {
	BaseURL     string
	Model       string
	VisionModel string
}{
	"ollama": {
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama3.1",
		VisionModel: "llava",
	},
	"openai": {
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		VisionModel: "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL:     "https://api.deepseek.com",
		Model:       "deepseek-chat",
		VisionModel: "deepseek-chat",
	},
	"openrouter": {
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "meta-llama/llama-3.1-70b-instruct",
		VisionModel: "meta-llama/llama-3.2-11b-vision-instruct",
	},
}

const defaultSystemPrompt = "You are Aida, a helpful voice assistant running on the user's desktop. " +
	"Answer briefly and naturally, your replies are read aloud."

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true when a language model can be reached.
// Local providers do not need an API key.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// IsAuthEnabled returns true when the HTTP API requires bearer tokens.
func (p *Profile) IsAuthEnabled() bool {
	return p.APISecret != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FromEnv loads configuration from AIDA_* environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("AIDA_AI_LLM_PROVIDER", "ollama")
	p.LLMAPIKey = getEnvOrDefault("AIDA_AI_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("AIDA_AI_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("AIDA_AI_LLM_MODEL", "")
	p.LLMVisionModel = getEnvOrDefault("AIDA_AI_LLM_VISION_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("AIDA_AI_LLM_TIMEOUT_SECONDS", 120)
	p.LLMTemperature = float32(getEnvOrDefaultFloat("AIDA_AI_LLM_TEMPERATURE", 0.7))
	p.SystemPrompt = getEnvOrDefault("AIDA_AI_SYSTEM_PROMPT", defaultSystemPrompt)
	p.MaxToolRounds = getEnvOrDefaultInt("AIDA_AI_MAX_TOOL_ROUNDS", 5)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("Unknown LLM provider, treating it as a generic OpenAI-compatible endpoint", "provider", p.LLMProvider)
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
		if p.LLMVisionModel == "" {
			p.LLMVisionModel = defaults.VisionModel
		}
	}
	if p.LLMVisionModel == "" {
		p.LLMVisionModel = p.LLMModel
	}

	// Embeddings default to the same endpoint as the LLM.
	p.EmbeddingProvider = getEnvOrDefault("AIDA_AI_EMBEDDING_PROVIDER", p.LLMProvider)
	p.EmbeddingModel = getEnvOrDefault("AIDA_AI_EMBEDDING_MODEL", "nomic-embed-text")
	p.EmbeddingAPIKey = getEnvOrDefault("AIDA_AI_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("AIDA_AI_EMBEDDING_BASE_URL", p.LLMBaseURL)
	p.EmbeddingDimensions = getEnvOrDefaultInt("AIDA_AI_EMBEDDING_DIMENSIONS", 0)

	p.MemoryEnabled = getEnvOrDefaultBool("AIDA_MEMORY_ENABLED", true)
	p.IncludeSemanticContext = getEnvOrDefaultBool("AIDA_MEMORY_SEMANTIC_CONTEXT", true)
	p.MaxSemanticResults = getEnvOrDefaultInt("AIDA_MEMORY_MAX_SEMANTIC_RESULTS", 3)
	p.SemanticBackend = getEnvOrDefault("AIDA_MEMORY_SEMANTIC_BACKEND", "chromem")
	p.EmbeddingQueueSize = getEnvOrDefaultInt("AIDA_MEMORY_EMBEDDING_QUEUE_SIZE", 256)
	p.EmbeddingRatePerSecond = getEnvOrDefaultFloat("AIDA_MEMORY_EMBEDDING_RATE", 5)

	p.TasksEnabled = getEnvOrDefaultBool("AIDA_TASKS_ENABLED", true)
	p.SpeakReminders = getEnvOrDefaultBool("AIDA_TASKS_SPEAK_REMINDERS", true)
	p.ReminderInterval = getEnvOrDefaultInt("AIDA_TASKS_REMINDER_INTERVAL_SECONDS", 60)
	p.ReminderWebhookURL = getEnvOrDefault("AIDA_TASKS_REMINDER_WEBHOOK_URL", "")

	p.WakeWord = getEnvOrDefault("AIDA_WAKE_WORD", "Aida")
	p.SpeakResponses = getEnvOrDefaultBool("AIDA_SPEAK_RESPONSES", true)

	p.HAURL = getEnvOrDefault("AIDA_HA_URL", "")
	p.HAToken = getEnvOrDefault("AIDA_HA_TOKEN", "")
	p.HAEnabled = getEnvOrDefaultBool("AIDA_HA_ENABLED", p.HAURL != "" && p.HAToken != "")
	p.RSSFeeds = splitList(getEnvOrDefault("AIDA_RSS_FEEDS", ""))
	p.MailEnabled = getEnvOrDefaultBool("AIDA_MAIL_ENABLED", false)
	p.CalendarEnabled = getEnvOrDefaultBool("AIDA_CALENDAR_ENABLED", false)
	p.TelegramToken = getEnvOrDefault("AIDA_TELEGRAM_BOT_TOKEN", "")
	p.TelegramChatIDs = nil
	for _, raw := range splitList(getEnvOrDefault("AIDA_TELEGRAM_CHAT_IDS", "")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("Ignoring invalid telegram chat id", "value", raw)
			continue
		}
		p.TelegramChatIDs = append(p.TelegramChatIDs, id)
	}
	p.DocumentsDir = getEnvOrDefault("AIDA_DOCUMENTS_DIR", "")

	p.APISecret = getEnvOrDefault("AIDA_API_SECRET", "")
	p.APIPasswordHash = getEnvOrDefault("AIDA_API_PASSWORD_HASH", "")
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, ".local", "share", "aida"), nil
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
	}
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalises the profile and derives the DSN for sqlite.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Data == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return err
		}
		p.Data = dir
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.DocumentsDir == "" {
		p.DocumentsDir = filepath.Join(p.Data, "documents")
	}

	switch p.Driver {
	case "", "sqlite":
		p.Driver = "sqlite"
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("aida_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn required for postgres driver")
		}
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.SemanticBackend != "chromem" && p.SemanticBackend != "store" {
		slog.Warn("Unknown semantic backend, using chromem", "backend", p.SemanticBackend)
		p.SemanticBackend = "chromem"
	}
	if p.MaxToolRounds <= 0 {
		p.MaxToolRounds = 5
	}
	if p.MaxSemanticResults <= 0 {
		p.MaxSemanticResults = 3
	}

	return nil
}

// EmbeddingsDir is where the vector index artifact lives.
func (p *Profile) EmbeddingsDir() string {
	return filepath.Join(p.Data, "embeddings")
}
