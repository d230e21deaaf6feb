// Package config provides configuration loading and structs for the ReguBot server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. They are never read from the YAML file.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvGitHubToken  = "GITHUB_TOKEN"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
	ProviderGitHub = "github"
	ProviderDir    = "dir"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Watch      WatchConfig      `yaml:"watch"`
	Mirror     MirrorConfig     `yaml:"mirror"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	MaxUploadMB  int    `yaml:"max_upload_mb"`
	HistoryLimit int    `yaml:"history_limit"`
}

// StorageConfig holds paths of the persisted artifacts.
type StorageConfig struct {
	IndexPath   string `yaml:"index_path"`
	StatePath   string `yaml:"state_path"`
	HistoryPath string `yaml:"history_path"`
}

// CatalogConfig points at an optional regulation catalog file. The built-in
// catalog is used when Path is empty.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ChunkingConfig holds chunk size and overlap in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds passage retrieval settings.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	TopKCandidates int     `yaml:"top_k_candidates"`
	Hybrid         *bool   `yaml:"hybrid"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	PhraseBoost    float64 `yaml:"phrase_boost"`
	Fuzzy          bool    `yaml:"fuzzy"`
}

// HybridOrDefault returns whether keyword retrieval is fused in; defaults to true.
func (r *RetrievalConfig) HybridOrDefault() bool {
	if r.Hybrid != nil {
		return *r.Hybrid
	}
	return true
}

// EmbeddingConfig selects the embedding service.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider"`
	Model      string  `yaml:"model"`
	BaseURL    string  `yaml:"base_url"`
	Dimensions int     `yaml:"dimensions"`
	BatchSize  int     `yaml:"batch_size"`
	RateLimit  float64 `yaml:"rate_limit"`
	CacheSize  int     `yaml:"cache_size"`
}

// GenerationConfig selects the text-generation service.
type GenerationConfig struct {
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	BaseURL        string   `yaml:"base_url"`
	Temperature    *float64 `yaml:"temperature"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// MirrorConfig configures the optional remote copy of the index and upload state.
type MirrorConfig struct {
	Provider string `yaml:"provider"`
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	Branch   string `yaml:"branch"`
	Path     string `yaml:"path"`
	BaseURL  string `yaml:"base_url"`
	Dir      string `yaml:"dir"`
}

// Enabled reports whether a mirror is configured.
func (m *MirrorConfig) Enabled() bool {
	return m.Provider != ""
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.StatePath = expandPath(cfg.Storage.StatePath, configDir)
	cfg.Storage.HistoryPath = expandPath(cfg.Storage.HistoryPath, configDir)
	if cfg.Catalog.Path != "" {
		cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	}
	if cfg.Mirror.Dir != "" {
		cfg.Mirror.Dir = expandPath(cfg.Mirror.Dir, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider names and numeric ranges.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Mirror.Provider {
	case "":
	case ProviderGitHub:
		if c.Mirror.Owner == "" || c.Mirror.Repo == "" {
			return fmt.Errorf("github mirror needs owner and repo")
		}
	case ProviderDir:
		if c.Mirror.Dir == "" {
			return fmt.Errorf("dir mirror needs dir")
		}
	default:
		return fmt.Errorf("unknown mirror provider %q", c.Mirror.Provider)
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("invalid chunking: size %d, overlap %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// APIKey returns the secret for an embedding or generation provider from the environment.
func APIKey(provider string) string {
	switch provider {
	case ProviderGemini:
		return os.Getenv(EnvGeminiAPIKey)
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	}
	return ""
}

// GitHubToken returns the mirror token from the environment.
func GitHubToken() string {
	return os.Getenv(EnvGitHubToken)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
