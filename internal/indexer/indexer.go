// Package indexer turns uploaded regulation documents into chunks and records them
// in the similarity index and the upload state.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/extract"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/internal/storage"
	"github.com/hyperjump/regubot/internal/vector"
)

// ErrNothingToIngest is returned when no upload produced any text.
var ErrNothingToIngest = errors.New("no document produced any text")

// mirrorPusher is implemented by stores that can publish their artifact.
type mirrorPusher interface {
	PushMirror(ctx context.Context) error
}

// FileResult describes what happened to one upload.
type FileResult struct {
	Name    string `json:"name"`
	Chunks  int    `json:"chunks"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// IngestResult summarises an ingestion batch.
type IngestResult struct {
	Files    []FileResult       `json:"files"`
	Chunks   int                `json:"chunks"`
	Rebuilt  bool               `json:"rebuilt,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	State    models.UploadState `json:"state"`
}

// Indexer ingests documents. The similarity index and the upload state are written
// together: when the state cannot be saved the index is rolled back.
type Indexer struct {
	store     *vector.Store
	state     storage.StateStore
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger

	mu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store *vector.Store, state storage.StateStore, chunker *Chunker, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		store:     store,
		state:     state,
		chunker:   chunker,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest extracts, chunks and indexes uploads, then records their names in the
// upload state (set union with the names already there). Uploads whose name is
// already indexed, that are unsupported or that yield no text are skipped and
// reported in the result. A corrupt existing index is rebuilt and reported as a
// warning. Mirror failures are warnings too.
func (idx *Indexer) Ingest(ctx context.Context, uploads []models.Upload) (*IngestResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	result := &IngestResult{}
	current := idx.store.Load(ctx)

	var chunks []models.Chunk
	var names []string
	seen := map[string]bool{}
	for _, up := range uploads {
		name := strings.TrimSpace(filepath.Base(up.Name))
		fr := FileResult{Name: name}
		switch {
		case name == "" || name == "." || name == string(filepath.Separator):
			fr.Skipped, fr.Reason = true, "missing file name"
		case seen[name] || current.HasDocument(name):
			fr.Skipped, fr.Reason = true, "already ingested"
		case !extract.Supported(name):
			fr.Skipped, fr.Reason = true, "unsupported format"
		default:
			docChunks, err := idx.prepare(name, up.Data)
			if err != nil {
				fr.Skipped, fr.Reason = true, err.Error()
				break
			}
			seen[name] = true
			fr.Chunks = len(docChunks)
			chunks = append(chunks, docChunks...)
			names = append(names, name)
		}
		if fr.Skipped {
			idx.logger.Info("Skipping upload", zap.String("name", name), zap.String("reason", fr.Reason))
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", name, fr.Reason))
		}
		result.Files = append(result.Files, fr)
	}

	if len(chunks) == 0 {
		return result, ErrNothingToIngest
	}

	upd, err := idx.store.CreateOrUpdate(ctx, chunks)
	if err != nil {
		return result, fmt.Errorf("failed to update index: %w", err)
	}
	result.Rebuilt = upd.Rebuilt
	if upd.Warning != "" {
		result.Warnings = append(result.Warnings, upd.Warning)
	}

	prior, err := idx.state.Load(ctx)
	if err != nil {
		idx.logger.Warn("Upload state unreadable, rebuilding it from the index", zap.Error(err))
		result.Warnings = append(result.Warnings, "The upload record was unreadable and has been rebuilt from the index.")
		prior = models.UploadState{}
	}
	next := prior.Merge(append(upd.Index.Documents(), names...)...)
	if err := idx.state.Save(ctx, next); err != nil {
		if rbErr := idx.store.Rollback(); rbErr != nil {
			idx.logger.Error("Index rollback failed", zap.Error(rbErr))
			return result, fmt.Errorf("failed to save upload state: %w (index rollback also failed: %v)", err, rbErr)
		}
		return result, fmt.Errorf("failed to save upload state: %w", err)
	}
	result.State = next
	result.Chunks = len(chunks)

	for _, s := range []any{idx.store, idx.state} {
		p, ok := s.(mirrorPusher)
		if !ok {
			continue
		}
		if err := p.PushMirror(ctx); err != nil {
			idx.logger.Warn("Mirror push failed", zap.Error(err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("Remote backup failed: %v", err))
		}
	}

	idx.logger.Info("Ingested documents",
		zap.Strings("names", names),
		zap.Int("chunks", len(chunks)),
		zap.Int("indexed_total", upd.Index.Len()))
	return result, nil
}

func (idx *Indexer) prepare(name string, data []byte) ([]models.Chunk, error) {
	text, err := idx.extractor.ExtractNamed(name, data)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	text = Preprocess(text)
	if text == "" {
		return nil, errors.New("no extractable text")
	}
	return idx.chunker.Chunk(name, text), nil
}

// IngestFile reads the file at path and ingests it under its base name.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.Ingest(ctx, []models.Upload{{Name: filepath.Base(path), Data: data}})
}

// IngestDirectory walks dir recursively and ingests every supported regular file
// (restricted to allowedExts when non-empty) as one batch.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string) (*IngestResult, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		if !extract.Supported(path) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	uploads := make([]models.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		uploads = append(uploads, models.Upload{Name: filepath.Base(p), Data: data})
	}
	return idx.Ingest(ctx, uploads)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
