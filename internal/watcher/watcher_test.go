package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/regubot/internal/embedding"
	"github.com/hyperjump/regubot/internal/extract"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/storage"
	"github.com/hyperjump/regubot/internal/vector"
)

type recordingIngester struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingIngester) IngestFile(_ context.Context, path string) (*indexer.IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return &indexer.IngestResult{Chunks: 1}, nil
}

func (r *recordingIngester) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(nil, []string{".txt"}, true, &recordingIngester{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_AddDirectoryBeforeStart(t *testing.T) {
	w := NewWatcher(nil, nil, true, &recordingIngester{})
	if err := w.AddDirectory(t.TempDir(), false); err == nil {
		t.Error("expected an error when the watcher is not running")
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}

	rec := &recordingIngester{}
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	fPath := filepath.Join(sub, "Law No 3 of 2024.txt")
	for i := 0; i < 3; i++ {
		if err := writeFile(fPath, strings.Repeat("article ", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(sub, "notes.md"), "skip"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(sub, ".draft.txt"), "skip"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return hasSuffix(rec.seen(), "Law No 3 of 2024.txt") })
	time.Sleep(150 * time.Millisecond)
	seen := rec.seen()
	if len(seen) != 1 {
		t.Errorf("expected a single debounced ingestion, got %v", seen)
	}
}

func TestWatcher_RemovedBeforeDebounceIsNotIngested(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingIngester{}
	w := NewWatcher([]string{dir}, nil, true, rec, WithDebounce(300*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "tmp.txt")
	if err := writeFile(path, "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	if seen := rec.seen(); len(seen) != 0 {
		t.Errorf("expected no ingestion, got %v", seen)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestHidden(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/in/.DS_Store", true},
		{"/in/report.pdf~", true},
		{"/in/report.pdf.part", true},
		{"/in/report.pdf.crdownload", true},
		{"/in/report.pdf", false},
	}
	for _, tt := range tests {
		if got := hidden(tt.path); got != tt.want {
			t.Errorf("hidden(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	rec := &recordingIngester{}
	w := NewWatcher([]string{dir}, nil, true, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()

	seen := rec.seen()
	if len(seen) != 1 || !strings.HasSuffix(seen[0], "a.txt") {
		t.Errorf("expected one ingested file a.txt, got %v", seen)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")

	w := NewWatcher([]string{root}, nil, true, &recordingIngester{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewFolderIsIngested(t *testing.T) {
	dir := t.TempDir()
	rec := &recordingIngester{}
	w := NewWatcher([]string{dir}, []string{".txt", ".md"}, true, rec, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return hasSuffix(rec.seen(), "deep.txt") })
}

func TestWatcher_IngestsIntoIndex(t *testing.T) {
	base := t.TempDir()
	inbox := filepath.Join(base, "inbox")
	store := vector.NewStore(filepath.Join(base, "index.bin"), embedding.NewMockEmbedder(32))
	state := storage.NewJSONStateStore(filepath.Join(base, "app_state.json"))
	chunker, err := indexer.NewChunker(200, 20)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, state, chunker, extract.NewExtractor())

	done := make(chan error, 1)
	w := NewWatcher([]string{inbox}, nil, true, idx,
		WithDebounce(50*time.Millisecond),
		WithNotify(func(_ string, _ *indexer.IngestResult, err error) {
			select {
			case done <- err:
			default:
			}
		}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(inbox, "Circular No 3 of 2020.txt"), "Guidance on e-catalogue purchasing."); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("file was not ingested")
	}
	if !store.Load(ctx).HasDocument("Circular No 3 of 2020.txt") {
		t.Error("document missing from index")
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
