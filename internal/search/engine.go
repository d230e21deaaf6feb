package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/keyword"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/internal/vector"
)

// Config controls retrieval.
type Config struct {
	// TopKCandidates is how many hits each side contributes before fusion.
	TopKCandidates int
	// Hybrid enables the keyword side; false means vector-only retrieval.
	Hybrid         bool
	KeywordWeight  float64
	SemanticWeight float64
	PhraseBoost    float64
	FuzzyEnabled   bool
}

// Result is a retrieved passage.
type Result struct {
	Chunk         models.Chunk
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// Engine retrieves passages from an index handle. The keyword index is an
// in-memory Bleve index rebuilt whenever a different handle is queried.
type Engine struct {
	store  *vector.Store
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	kw    *keyword.BleveIndex
	kwFor *vector.Index
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a retrieval engine over store.
func NewEngine(store *vector.Store, cfg Config, opts ...Option) *Engine {
	if cfg.TopKCandidates <= 0 {
		cfg.TopKCandidates = 20
	}
	if cfg.KeywordWeight == 0 && cfg.SemanticWeight == 0 {
		cfg.KeywordWeight, cfg.SemanticWeight = 0.3, 0.7
	}
	e := &Engine{store: store, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve returns up to k passages of idx relevant to question, best first. Ties
// keep index insertion order. A failing keyword side degrades to vector-only.
func (e *Engine) Retrieve(ctx context.Context, idx *vector.Index, question string, k int) ([]Result, error) {
	q, err := ProcessQuery(question)
	if err != nil {
		return nil, err
	}
	if idx == nil || idx.Empty() || k <= 0 {
		return nil, nil
	}
	candidates := max(e.cfg.TopKCandidates, k)

	if !e.cfg.Hybrid {
		hits, err := e.store.Search(ctx, idx, q, k)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		out := make([]Result, len(hits))
		for i, h := range hits {
			out[i] = Result{Chunk: h.Chunk, Score: h.Score, SemanticScore: h.Score}
		}
		return out, nil
	}

	var (
		keywordResults []*keyword.KeywordResult
		semanticHits   []vector.Hit
		keywordErr     error
		semanticErr    error
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = e.keywordSearch(ctx, idx, q, candidates)
	}()
	go func() {
		defer wg.Done()
		semanticHits, semanticErr = e.store.Search(ctx, idx, q, candidates)
	}()
	wg.Wait()

	if semanticErr != nil {
		return nil, fmt.Errorf("vector search failed: %w", semanticErr)
	}
	if keywordErr != nil {
		e.logger.Warn("Keyword search failed, using vector results only", zap.Error(keywordErr))
		keywordResults = nil
	}

	position := make(map[string]int, idx.Len())
	byID := make(map[string]models.Chunk, idx.Len())
	for i, c := range idx.Chunks() {
		position[c.ID] = i
		byID[c.ID] = c
	}

	fused := Fuse(NormalizeKeywordScores(keywordResults), NormalizeSemanticScores(semanticHits),
		e.cfg.KeywordWeight, e.cfg.SemanticWeight)
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return position[fused[i].ID] < position[fused[j].ID]
	})

	out := make([]Result, 0, k)
	for _, f := range fused {
		c, ok := byID[f.ID]
		if !ok {
			continue
		}
		out = append(out, Result{Chunk: c, Score: f.Score, KeywordScore: f.KeywordScore, SemanticScore: f.SemanticScore})
		if len(out) == k {
			break
		}
	}
	e.logger.Debug("Retrieved passages",
		zap.Int("keyword", len(keywordResults)),
		zap.Int("semantic", len(semanticHits)),
		zap.Int("returned", len(out)))
	return out, nil
}

func (e *Engine) keywordSearch(ctx context.Context, idx *vector.Index, q string, limit int) ([]*keyword.KeywordResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.kw == nil || e.kwFor != idx {
		kw, err := keyword.NewMemIndex()
		if err != nil {
			return nil, err
		}
		if err := kw.IndexChunks(ctx, idx.Chunks()); err != nil {
			_ = kw.Close()
			return nil, err
		}
		if e.kw != nil {
			_ = e.kw.Close()
		}
		e.kw, e.kwFor = kw, idx
		e.logger.Debug("Keyword index rebuilt", zap.Int("chunks", idx.Len()))
	}
	return e.kw.Search(ctx, q, limit, &keyword.SearchOptions{
		PhraseBoost:  e.cfg.PhraseBoost,
		FuzzyEnabled: e.cfg.FuzzyEnabled,
	})
}

// Close releases the keyword index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.kw == nil {
		return nil
	}
	err := e.kw.Close()
	e.kw, e.kwFor = nil, nil
	return err
}
