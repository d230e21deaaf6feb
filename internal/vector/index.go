// Package vector holds the similarity index over regulation chunks and its persistence.
package vector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/pkg/utils"
)

var (
	// ErrIndexCorrupted means a persisted index could not be decoded.
	ErrIndexCorrupted = errors.New("vector index corrupted")

	// ErrIndexUnavailable means the index could not be read for a reason other than corruption.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

// Entry is one indexed chunk and its normalised embedding.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Index is an immutable snapshot of (chunk, vector) pairs plus the names of the
// documents they came from. Appending returns a new Index, so a handle can be read
// concurrently while the store produces the next one.
type Index struct {
	dimensions int
	entries    []Entry
	documents  map[string]struct{}
}

// NewIndex returns an empty index for vectors of the given dimension.
func NewIndex(dimensions int) *Index {
	return &Index{dimensions: dimensions, documents: map[string]struct{}{}}
}

// Dimensions returns the vector dimension (0 for an empty index that was never built).
func (ix *Index) Dimensions() int {
	return ix.dimensions
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Empty reports whether the index holds no chunks.
func (ix *Index) Empty() bool {
	return len(ix.entries) == 0
}

// Chunks returns the indexed chunks in insertion order.
func (ix *Index) Chunks() []models.Chunk {
	out := make([]models.Chunk, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.Chunk
	}
	return out
}

// Documents returns the ingested document names, sorted.
func (ix *Index) Documents() []string {
	out := make([]string, 0, len(ix.documents))
	for d := range ix.documents {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// HasDocument reports whether a document with this ID was ingested.
func (ix *Index) HasDocument(id string) bool {
	_, ok := ix.documents[id]
	return ok
}

// Append returns a new index with the chunks and vectors added after the existing
// entries. Vectors are copied and L2-normalised.
func (ix *Index) Append(chunks []models.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	dim := ix.dimensions
	next := &Index{
		entries:   make([]Entry, len(ix.entries), len(ix.entries)+len(chunks)),
		documents: make(map[string]struct{}, len(ix.documents)+1),
	}
	copy(next.entries, ix.entries)
	for d := range ix.documents {
		next.documents[d] = struct{}{}
	}
	for i, c := range chunks {
		if dim == 0 {
			dim = len(vectors[i])
		}
		if len(vectors[i]) != dim || dim == 0 {
			return nil, fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), dim)
		}
		vec, ok := utils.UnitVector(vectors[i])
		if !ok && !allZero(vec) {
			return nil, fmt.Errorf("vector for chunk %s is not finite", c.ID)
		}
		next.entries = append(next.entries, Entry{Chunk: c, Vector: vec})
		next.documents[c.DocumentID] = struct{}{}
	}
	next.dimensions = dim
	return next, nil
}

// Hit is a search result.
type Hit struct {
	Chunk models.Chunk
	Score float64
}

// Nearest returns the k entries most similar to query, highest first. Ties keep
// insertion order. The query is normalised the same way as stored vectors.
func (ix *Index) Nearest(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(ix.entries) == 0 {
		return nil, nil
	}
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dimensions)
	}
	q, _ := utils.UnitVector(query)

	hits := make([]Hit, len(ix.entries))
	for i, e := range ix.entries {
		hits[i] = Hit{Chunk: e.Chunk, Score: InnerProduct(q, e.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
