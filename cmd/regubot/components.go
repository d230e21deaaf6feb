package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/assistant"
	"github.com/hyperjump/regubot/internal/catalog"
	"github.com/hyperjump/regubot/internal/config"
	"github.com/hyperjump/regubot/internal/embedding"
	"github.com/hyperjump/regubot/internal/extract"
	"github.com/hyperjump/regubot/internal/generate"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/mirror"
	"github.com/hyperjump/regubot/internal/search"
	"github.com/hyperjump/regubot/internal/storage"
	"github.com/hyperjump/regubot/internal/vector"
)

// Components holds the wired application stack.
type Components struct {
	Embedder  embedding.Embedder
	Store     *vector.Store
	State     *storage.JSONStateStore
	History   *storage.SQLiteHistory
	Catalog   *catalog.Catalog
	Engine    *search.Engine
	Indexer   *indexer.Indexer
	Assistant *assistant.Service
}

func (c *Components) Close() {
	if c.History != nil {
		_ = c.History.Close()
	}
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// initializeComponents builds the stack from cfg. When withGenerator is false no
// generation client is created and Ask answers with a placeholder, so commands
// that never ask a question work without a generation API key.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withGenerator bool) (*Components, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	remote, err := newMirror(cfg, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize mirror: %w", err)
	}
	storeOpts := []vector.Option{vector.WithLogger(logger)}
	stateOpts := []storage.StateOption{storage.WithStateLogger(logger)}
	if remote != nil {
		storeOpts = append(storeOpts, vector.WithMirror(remote))
		stateOpts = append(stateOpts, storage.WithStateMirror(remote))
		logger.Info("remote mirror enabled", zap.String("provider", cfg.Mirror.Provider))
	}
	store := vector.NewStore(cfg.Storage.IndexPath, embedder, storeOpts...)
	state := storage.NewJSONStateStore(cfg.Storage.StatePath, stateOpts...)

	history, err := storage.NewSQLiteHistory(cfg.Storage.HistoryPath)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		cat, err = catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			_ = history.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	chunker, err := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		_ = history.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}
	idx := indexer.NewIndexer(store, state, chunker, extract.NewExtractor(), indexer.WithLogger(logger))

	engine := search.NewEngine(store, search.Config{
		TopKCandidates: cfg.Retrieval.TopKCandidates,
		Hybrid:         cfg.Retrieval.HybridOrDefault(),
		KeywordWeight:  cfg.Retrieval.KeywordWeight,
		SemanticWeight: cfg.Retrieval.SemanticWeight,
		PhraseBoost:    cfg.Retrieval.PhraseBoost,
		FuzzyEnabled:   cfg.Retrieval.Fuzzy,
	}, search.WithLogger(logger))

	var gen generate.Generator = generate.Func(func(context.Context, string) (string, error) {
		return "", fmt.Errorf("%w: generation is not configured for this command", generate.ErrTransport)
	})
	if withGenerator {
		gen, err = newGenerator(cfg, logger)
		if err != nil {
			_ = engine.Close()
			_ = history.Close()
			_ = embedder.Close()
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
	}

	svc := assistant.NewService(store, state, engine, gen, cat,
		assistant.WithLogger(logger),
		assistant.WithHistory(history),
		assistant.WithTopK(cfg.Retrieval.TopK),
	)

	return &Components{
		Embedder:  embedder,
		Store:     store,
		State:     state,
		History:   history,
		Catalog:   cat,
		Engine:    engine,
		Indexer:   idx,
		Assistant: svc,
	}, nil
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case config.ProviderGemini:
		opts := []embedding.GeminiOption{
			embedding.WithGeminiRateLimit(ec.RateLimit, 1),
			embedding.WithGeminiBatchSize(ec.BatchSize),
		}
		if ec.BaseURL != "" {
			opts = append(opts, embedding.WithGeminiBaseURL(ec.BaseURL))
		}
		return embedding.NewGeminiEmbedder(config.APIKey(ec.Provider), ec.Model, ec.Dimensions, opts...)
	case config.ProviderOpenAI:
		return embedding.NewOpenAIEmbedder(config.APIKey(ec.Provider), ec.BaseURL, ec.Model, ec.Dimensions)
	case config.ProviderMock:
		return embedding.NewMockEmbedder(ec.Dimensions), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
}

func newGenerator(cfg *config.Config, logger *zap.Logger) (generate.Generator, error) {
	gc := cfg.Generation
	timeout := time.Duration(gc.TimeoutSeconds) * time.Second
	temperature := 0.3
	if gc.Temperature != nil {
		temperature = *gc.Temperature
	}
	switch gc.Provider {
	case config.ProviderGemini:
		opts := []generate.GeminiOption{
			generate.WithGeminiTemperature(temperature),
			generate.WithGeminiHTTPClient(&http.Client{Timeout: timeout}),
			generate.WithGeminiLogger(logger),
		}
		if gc.BaseURL != "" {
			opts = append(opts, generate.WithGeminiBaseURL(gc.BaseURL))
		}
		return generate.NewGeminiClient(config.APIKey(gc.Provider), gc.Model, opts...)
	case config.ProviderOpenAI:
		client, err := generate.NewOpenAIClient(config.APIKey(gc.Provider), gc.BaseURL, gc.Model, temperature)
		if err != nil {
			return nil, err
		}
		return generate.WithTimeout(client, timeout), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q", gc.Provider)
}

// newMirror returns the configured remote copy, or nil when none is configured.
func newMirror(cfg *config.Config, logger *zap.Logger) (mirror.Remote, error) {
	mc := cfg.Mirror
	if !mc.Enabled() {
		return nil, nil
	}
	switch mc.Provider {
	case config.ProviderDir:
		return mirror.NewDir(mc.Dir), nil
	case config.ProviderGitHub:
		opts := []mirror.Option{mirror.WithLogger(logger)}
		if mc.BaseURL != "" {
			opts = append(opts, mirror.WithBaseURL(mc.BaseURL))
		}
		return mirror.NewGitHub(config.GitHubToken(), mc.Owner, mc.Repo, mc.Branch, mc.Path, opts...)
	}
	return nil, fmt.Errorf("unknown mirror provider %q", mc.Provider)
}
