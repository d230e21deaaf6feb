package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/regubot/internal/models"
)

const batchSize = 500

// chunkDoc is what gets stored per chunk.
type chunkDoc struct {
	Content  string `json:"content"`
	Document string `json:"document"`
}

// BleveIndex implements KeywordIndex using an in-memory Bleve index. It is rebuilt
// from the similarity index's chunks, so nothing is persisted.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming): Indonesian legal text
	// is mangled by the English stemmer.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("document", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewMemIndex creates an empty in-memory index.
func NewMemIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds chunks keyed by chunk ID, in batches.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []models.Chunk) error {
	batch := b.index.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(c.ID, chunkDoc{Content: c.Text, Document: c.DocumentID}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		if batch.Size() >= batchSize || i == len(chunks)-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch = b.index.NewBatch()
		}
	}
	return nil
}

// Search runs a match query over chunk content. With PhraseBoost > 1 chunks that
// contain the query as a phrase are boosted; with FuzzyEnabled each term is
// matched with the given edit distance.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	phraseBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.PhraseBoost > 0 {
			phraseBoost = opts.PhraseBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		q = mq
	}
	reqSize := limit
	if phraseBoost > 1.0 && reqSize < 50 {
		reqSize = 50
	}
	req := bleve.NewSearchRequest(q)
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	var phraseMatches map[string]bool
	if phraseBoost > 1.0 && len(tokenizeQuery(query)) > 1 {
		phraseMatches = b.findPhraseMatches(ctx, query, reqSize)
	}

	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		score := hit.Score
		if phraseMatches[hit.ID] {
			score *= phraseBoost
		}
		out[i] = &KeywordResult{ID: hit.ID, Score: score}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField("content")
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// findPhraseMatches finds chunks where the query appears as a phrase.
func (b *BleveIndex) findPhraseMatches(ctx context.Context, query string, reqSize int) map[string]bool {
	matches := make(map[string]bool)
	phraseQuery := bleve.NewMatchPhraseQuery(query)
	phraseQuery.SetField("content")
	req := bleve.NewSearchRequest(phraseQuery)
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return matches
	}
	for _, hit := range results.Hits {
		matches[hit.ID] = true
	}
	return matches
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
