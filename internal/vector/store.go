package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/embedding"
	"github.com/hyperjump/regubot/internal/mirror"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/pkg/utils"
)

// UpdateResult is the outcome of CreateOrUpdate. Warning is set when the previous
// index was unreadable and was replaced by one built from the current batch only.
type UpdateResult struct {
	Index   *Index
	Warning string
	Rebuilt bool
}

type snapshot struct {
	index   *Index
	blob    []byte
	existed bool
}

// Store owns the persisted index blob, the embedder used to build and query it and
// the cached handle of the last successful persist. Mutations are serialised within
// the process; nothing protects against a second process writing the same file.
type Store struct {
	path     string
	embedder embedding.Embedder
	remote   mirror.Remote
	logger   *zap.Logger

	mu     sync.Mutex
	cached *Index
	prev   *snapshot
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMirror restores the blob from remote when the local file is missing and lets
// PushMirror publish it.
func WithMirror(r mirror.Remote) Option {
	return func(s *Store) {
		s.remote = r
	}
}

// NewStore creates a store persisting to path.
func NewStore(path string, embedder embedding.Embedder, opts ...Option) *Store {
	s := &Store{
		path:     path,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the persisted blob.
func (s *Store) Path() string {
	return s.path
}

// CreateOrUpdate embeds chunks and appends them to the persisted index, creating it
// if none exists. An unreadable existing index is discarded and rebuilt from chunks
// alone; the result then carries a warning instead of an error.
func (s *Store) CreateOrUpdate(ctx context.Context, chunks []models.Chunk) (*UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
	}

	result := &UpdateResult{}
	base, blob, existed, err := s.readLocked(ctx)
	if err != nil && !errors.Is(err, ErrIndexCorrupted) {
		return nil, err
	}
	if err == nil && len(vectors) > 0 && base.Dimensions() != 0 && base.Dimensions() != len(vectors[0]) {
		err = fmt.Errorf("%w: stored dimension %d, embedder produces %d", ErrIndexCorrupted, base.Dimensions(), len(vectors[0]))
	}
	if err != nil {
		s.logger.Warn("Discarding unreadable index and rebuilding from current batch",
			zap.String("path", s.path), zap.Error(err))
		result.Warning = fmt.Sprintf("The existing index could not be read and was rebuilt from this upload only (%v).", err)
		result.Rebuilt = true
		base = NewIndex(0)
	}

	next, err := base.Append(chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("append to index: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, next.Encode(), 0644); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	var prevIndex *Index
	if !result.Rebuilt {
		prevIndex = base
	}
	s.prev = &snapshot{index: prevIndex, blob: blob, existed: existed}
	s.cached = next
	result.Index = next

	s.logger.Debug("Index persisted",
		zap.String("path", s.path),
		zap.Int("added", len(chunks)),
		zap.Int("total", next.Len()))
	return result, nil
}

// Rollback restores the blob and cached handle that preceded the last
// CreateOrUpdate. It is a no-op when there is nothing to roll back.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prev == nil {
		return nil
	}
	prev := s.prev
	s.prev = nil
	if prev.existed {
		if err := utils.WriteFileAtomic(s.path, prev.blob, 0644); err != nil {
			return fmt.Errorf("restore index: %w", err)
		}
	} else if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove index: %w", err)
	}
	s.cached = prev.index
	s.logger.Info("Index rolled back", zap.String("path", s.path))
	return nil
}

// Load returns the current index handle. A missing or unreadable index yields an
// empty one; failures are logged, never returned.
func (s *Store) Load(ctx context.Context) *Index {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached
	}
	ix, _, existed, err := s.readLocked(ctx)
	if err != nil {
		s.logger.Warn("Index unavailable, treating as empty", zap.String("path", s.path), zap.Error(err))
		return NewIndex(0)
	}
	if existed {
		s.cached = ix
	}
	return ix
}

// Search embeds query and returns the k most similar chunks of idx.
func (s *Store) Search(ctx context.Context, idx *Index, query string, k int) ([]Hit, error) {
	if idx == nil || idx.Empty() || k <= 0 {
		return nil, nil
	}
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.Nearest(q, k)
}

// PushMirror uploads the persisted blob to the configured mirror.
func (s *Store) PushMirror(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	return s.remote.Push(ctx, filepath.Base(s.path), data, "Update regulation index")
}

// readLocked returns the decoded index, the raw blob and whether a blob existed.
// A missing blob is an empty index, pulled from the mirror first when one is set.
func (s *Store) readLocked(ctx context.Context) (*Index, []byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = s.pullLocked(ctx)
		if data == nil && err == nil {
			return NewIndex(0), nil, false, nil
		}
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	ix, err := Decode(data)
	if err != nil {
		return nil, data, true, err
	}
	return ix, data, true, nil
}

func (s *Store) pullLocked(ctx context.Context) ([]byte, error) {
	if s.remote == nil {
		return nil, nil
	}
	data, err := s.remote.Pull(ctx, filepath.Base(s.path))
	if errors.Is(err, mirror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("Mirror pull failed", zap.String("path", s.path), zap.Error(err))
		return nil, nil
	}
	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return nil, err
	}
	s.logger.Info("Restored index from mirror", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return data, nil
}
