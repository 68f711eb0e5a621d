package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/aida/ai/assistant"
	"github.com/hrygo/aida/ai/cache"
	"github.com/hrygo/aida/ai/core/embedding"
	"github.com/hrygo/aida/ai/core/llm"
	"github.com/hrygo/aida/ai/memory"
	"github.com/hrygo/aida/ai/metrics"
	"github.com/hrygo/aida/ai/routing"
	"github.com/hrygo/aida/ai/semantic"
	"github.com/hrygo/aida/ai/tasks"
	"github.com/hrygo/aida/internal/profile"
	"github.com/hrygo/aida/plugin/actions"
	"github.com/hrygo/aida/plugin/files"
	"github.com/hrygo/aida/plugin/homeassistant"
	"github.com/hrygo/aida/plugin/rss"
	"github.com/hrygo/aida/plugin/vision"
	"github.com/hrygo/aida/plugin/webfetch"
	"github.com/hrygo/aida/plugin/webhook"
	"github.com/hrygo/aida/store"
	"github.com/hrygo/aida/store/db"
)

const (
	embeddingCacheSize = 1024
	embeddingCacheTTL  = time.Hour
	workerDrainTimeout = 10 * time.Second
	homeCheckTimeout   = 5 * time.Second
)

// app holds the collaborators every subcommand shares.
type app struct {
	profile   *profile.Profile
	store     *store.Store
	exporter  *metrics.PrometheusExporter
	worker    *semantic.Worker
	memory    *memory.Manager
	tasks     *tasks.Manager
	assistant *assistant.Assistant
	home      *homeassistant.Client
}

func newApp(ctx context.Context, p *profile.Profile) (*app, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}

	a := &app{
		profile:  p,
		store:    s,
		exporter: metrics.NewPrometheusExporter(metrics.DefaultConfig()),
		tasks:    tasks.NewManager(s),
	}

	llmService, err := llm.NewService(&llm.Config{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		VisionModel: p.LLMVisionModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		Temperature: p.LLMTemperature,
		Timeout:     p.LLMTimeout,
	})
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to create LLM service")
	}

	var index *semantic.Index
	if p.MemoryEnabled && p.IncludeSemanticContext {
		index = a.newIndex()
		if index != nil {
			a.worker = semantic.NewWorker(index, s, semantic.WorkerConfig{
				QueueSize:     p.EmbeddingQueueSize,
				RatePerSecond: p.EmbeddingRatePerSecond,
				Metrics:       a.exporter,
			})
		}
	}
	a.memory = memory.NewManager(s, index, a.worker)

	deps := assistant.Deps{
		LLM:     llmService,
		Memory:  a.memory,
		Tasks:   a.tasks,
		Actions: a.actionDeps(llmService),
		Metrics: a.exporter,
	}
	if p.ReminderWebhookURL != "" {
		deps.Notifier = webhook.New(p.ReminderWebhookURL, nil)
	}
	a.assistant, err = assistant.New(assistant.ConfigFromProfile(p), deps)
	if err != nil {
		s.Close()
		return nil, err
	}

	if !a.assistant.CheckAvailability(ctx) {
		slog.Warn("language model is not reachable, replies will be apologies until it is",
			"provider", p.LLMProvider, "base_url", p.LLMBaseURL)
	}
	a.checkHomeAssistant(ctx)
	return a, nil
}

// newIndex opens the configured vector backend. It returns nil when
// embeddings cannot be set up; memory then works without semantic recall.
func (a *app) newIndex() *semantic.Index {
	p := a.profile
	provider, err := embedding.NewProvider(&embedding.Config{
		BaseURL:    p.EmbeddingBaseURL,
		APIKey:     p.EmbeddingAPIKey,
		Model:      p.EmbeddingModel,
		Dimensions: p.EmbeddingDimensions,
	})
	if err != nil {
		slog.Warn("semantic memory disabled", "error", err)
		return nil
	}
	cached := cache.NewCachedEmbedder(provider, embeddingCacheSize, embeddingCacheTTL)

	var backend semantic.Backend
	switch p.SemanticBackend {
	case "store":
		backend = semantic.NewStoreBackend(a.store, cached)
	default:
		chromem, err := semantic.NewChromemBackend(p.EmbeddingsDir(), cached)
		if err != nil {
			slog.Warn("semantic memory disabled", "backend", p.SemanticBackend, "error", err)
			return nil
		}
		backend = chromem
	}
	return semantic.NewIndex(backend)
}

// actionDeps wires the collaborators that exist on a headless host. Camera,
// screen, window, browser, mail and calendar access stay unset and their
// actions answer that they are unavailable.
func (a *app) actionDeps(service llm.Service) actions.Deps {
	p := a.profile
	d := actions.Deps{
		Vision: vision.NewDescriber(service),
		Web:    webfetch.New(),
		Feeds:  rss.NewFeeds(rss.NewReader(nil), rss.ParseSources(p.RSSFeeds)),
	}
	if p.HAEnabled {
		a.home = homeassistant.New(p.HAURL, p.HAToken)
		d.Home = a.home
		a.tasks.SetListSyncer(a.home)
	}
	if executor, err := files.NewHomeExecutor(p.DocumentsDir); err != nil {
		slog.Warn("file actions disabled", "error", err)
	} else {
		d.Files = executor
	}
	return d
}

// checkHomeAssistant turns the Home Assistant routes off when the instance
// does not answer at startup, so device commands reach the language model
// instead of failing one by one.
func (a *app) checkHomeAssistant(ctx context.Context) {
	if a.home == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, homeCheckTimeout)
	defer cancel()
	if _, err := a.home.States(ctx); err != nil {
		slog.Warn("home assistant is not reachable, device routes disabled",
			"url", a.profile.HAURL, "error", err)
		a.assistant.Table().SetFeature(routing.FeatureHomeAssistant, false)
	}
}

// start launches the background indexer.
func (a *app) start(ctx context.Context) {
	if a.worker != nil {
		a.worker.Start(ctx)
	}
}

// close drains the indexer and closes the store.
func (a *app) close() {
	if a.worker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), workerDrainTimeout)
		if err := a.worker.Shutdown(ctx); err != nil {
			slog.Warn("embedding queue not drained", "pending", a.worker.Pending(), "error", err)
		}
		cancel()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
