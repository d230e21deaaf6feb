package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Server.HistoryLimit == 0 {
		cfg.Server.HistoryLimit = 100
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/regubot/data/regulation_index.bin"
	}
	if cfg.Storage.StatePath == "" {
		cfg.Storage.StatePath = "/usr/local/var/regubot/data/app_state.json"
	}
	if cfg.Storage.HistoryPath == "" {
		cfg.Storage.HistoryPath = "/usr/local/var/regubot/data/history.db"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 600
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 50
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.TopKCandidates == 0 {
		cfg.Retrieval.TopKCandidates = 20
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}
	if cfg.Retrieval.PhraseBoost == 0 {
		cfg.Retrieval.PhraseBoost = 2.0
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderGemini
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case ProviderGemini:
			cfg.Embedding.Model = "text-embedding-004"
		case ProviderOpenAI:
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case ProviderGemini:
			cfg.Embedding.Dimensions = 768
		case ProviderOpenAI:
			cfg.Embedding.Dimensions = 1536
		default:
			cfg.Embedding.Dimensions = 256
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.RateLimit == 0 {
		cfg.Embedding.RateLimit = 5
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = ProviderGemini
	}
	if cfg.Generation.Model == "" {
		switch cfg.Generation.Provider {
		case ProviderGemini:
			cfg.Generation.Model = "gemini-1.5-flash"
		case ProviderOpenAI:
			cfg.Generation.Model = "gpt-4o-mini"
		}
	}
	if cfg.Generation.Temperature == nil {
		t := 0.3
		cfg.Generation.Temperature = &t
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".xlsx", ".odt", ".ods", ".md", ".txt"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Mirror.Provider == ProviderGitHub {
		if cfg.Mirror.Branch == "" {
			cfg.Mirror.Branch = "main"
		}
		if cfg.Mirror.Path == "" {
			cfg.Mirror.Path = "data"
		}
	}
}
