package main

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/assistant"
	"github.com/hyperjump/regubot/internal/cli"
	"github.com/hyperjump/regubot/internal/config"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/server"
)

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"procurement"}, "procurement"},
		{"multiple words", []string{"what", "is", "e-purchasing"}, "what is e-purchasing"},
		{"single quoted phrase", []string{"what is e-purchasing"}, "what is e-purchasing"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuestion(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		in      string
		want    cli.OutputFormat
		wantErr bool
	}{
		{"text", cli.OutputText, false},
		{"", cli.OutputText, false},
		{"json", cli.OutputJSON, false},
		{"compact", "", true},
	}
	for _, tt := range tests {
		got, err := parseOutput(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOutput(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseOutput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
embedding:
  provider: mock
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
embedding:
  provider: mock
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestExpandIngestPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.md", "skip.bin", ".hidden/c.txt", "sub/d.pdf"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := expandIngestPaths([]string{dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.txt"), filepath.Join(dir, "sub", "d.pdf")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expandIngestPaths() = %v, want %v", got, want)
	}

	got, err = expandIngestPaths([]string{dir, filepath.Join(dir, "b.txt")}, []string{".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{filepath.Join(dir, "b.txt")}) {
		t.Errorf("expandIngestPaths(.txt) = %v", got)
	}

	if _, err := expandIngestPaths([]string{filepath.Join(dir, "missing")}, nil); err == nil {
		t.Error("expected error for missing path")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			IndexPath:   filepath.Join(dir, "regulation_index.bin"),
			StatePath:   filepath.Join(dir, "app_state.json"),
			HistoryPath: filepath.Join(dir, "history.db"),
		},
		Embedding: config.EmbeddingConfig{Provider: config.ProviderMock},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents_UnknownProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "nope"
	if _, err := initializeComponents(cfg, zap.NewNop(), false); err == nil {
		t.Error("expected error for unknown embedding provider")
	}

	cfg = testConfig(t)
	cfg.Mirror.Provider = "nope"
	if _, err := initializeComponents(cfg, zap.NewNop(), false); err == nil {
		t.Error("expected error for unknown mirror provider")
	}

	cfg = testConfig(t)
	cfg.Generation.Provider = config.ProviderOpenAI
	t.Setenv(config.EnvOpenAIAPIKey, "")
	if _, err := initializeComponents(cfg, zap.NewNop(), true); err == nil {
		t.Error("expected error for missing generation api key")
	}
}

func TestInitializeComponents_DirectIngestAndStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mirror = config.MirrorConfig{Provider: config.ProviderDir, Dir: filepath.Join(t.TempDir(), "backup")}
	c, err := initializeComponents(cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	doc := filepath.Join(t.TempDir(), "Law No 3 of 2024.txt")
	if err := os.WriteFile(doc, []byte("Article 1\nProcurement of goods/services is carried out by the procurement official."), 0644); err != nil {
		t.Fatal(err)
	}
	res, err := ingestPath(t.Context(), c.Indexer, doc, cfg.Watch.Extensions)
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks == 0 {
		t.Errorf("expected chunks, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(cfg.Mirror.Dir, filepath.Base(cfg.Storage.IndexPath))); err != nil {
		t.Errorf("index not mirrored: %v", err)
	}

	st, err := c.Assistant.Status(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Documents) != 1 {
		t.Errorf("documents = %v, want one", st.Documents)
	}

	env := c.Assistant.Ask(t.Context(), "s1", "What does Article 1 say about procurement of goods?")
	if env.AnswerText == "" {
		t.Error("expected an answer or a placeholder")
	}
}

func TestHTTPClient(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	srv := server.NewServer(c.Assistant, c.Indexer, cfg, zap.NewNop(), nil, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dir := t.TempDir()
	doc := filepath.Join(dir, "regulation.txt")
	if err := os.WriteFile(doc, []byte("Procurement of goods/services through e-purchasing uses the electronic catalogue."), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("   "), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("upload", func(t *testing.T) {
		res, err := uploadViaHTTP(ts.URL, []string{doc})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Files) != 1 || res.Chunks == 0 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("upload nothing to ingest", func(t *testing.T) {
		res, err := uploadViaHTTP(ts.URL, []string{empty})
		if !errors.Is(err, indexer.ErrNothingToIngest) {
			t.Fatalf("err = %v, want ErrNothingToIngest", err)
		}
		if res == nil || len(res.Warnings) == 0 {
			t.Errorf("expected warnings, got %+v", res)
		}
	})

	t.Run("ask assigns session", func(t *testing.T) {
		resp, err := askViaHTTP(ts.URL, "", "What is e-purchasing in procurement?")
		if err != nil {
			t.Fatal(err)
		}
		if resp.SessionID == "" || resp.AnswerText == "" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("history and clear", func(t *testing.T) {
		if _, err := askViaHTTP(ts.URL, "s-history", "What is e-purchasing in procurement?"); err != nil {
			t.Fatal(err)
		}
		msgs, err := historyViaHTTP(ts.URL, "s-history", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 2 {
			t.Errorf("messages = %d, want 2", len(msgs))
		}
		if err := clearHistoryViaHTTP(ts.URL, "s-history"); err != nil {
			t.Fatal(err)
		}
		msgs, err = historyViaHTTP(ts.URL, "s-history", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 1 || msgs[0].Content != assistant.Greeting {
			t.Errorf("after clear = %+v, want greeting only", msgs)
		}
	})

	t.Run("status", func(t *testing.T) {
		st, err := statusViaHTTP(ts.URL)
		if err != nil {
			t.Fatal(err)
		}
		if len(st.Documents) != 1 || st.Documents[0] != "regulation.txt" {
			t.Errorf("documents = %v", st.Documents)
		}
		if st.Dimensions != cfg.Embedding.Dimensions {
			t.Errorf("dimensions = %d, want %d", st.Dimensions, cfg.Embedding.Dimensions)
		}
		var buf bytes.Buffer
		if err := cli.WriteStatus(&buf, st, cli.OutputText); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "regulation.txt") {
			t.Errorf("status output missing document: %s", buf.String())
		}
	})

	t.Run("watch not enabled", func(t *testing.T) {
		_, err := watchListViaHTTP(ts.URL)
		if err == nil || !strings.Contains(err.Error(), "watch not enabled") {
			t.Errorf("err = %v, want watch not enabled", err)
		}
	})
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "regubot version "+version) {
		t.Errorf("output = %q", buf.String())
	}
}
