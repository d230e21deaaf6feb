// Package indexer provides document chunking and ingestion into the similarity index.
package indexer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/regubot/internal/models"
)

// ErrInvalidConfiguration is returned for chunk parameters that cannot be honoured.
var ErrInvalidConfiguration = errors.New("invalid chunking configuration")

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 600
	// DefaultChunkOverlap is the number of characters repeated between adjacent chunks.
	DefaultChunkOverlap = 50
)

// separators are tried in order: paragraph, line, sentence, word, then a hard cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text into overlapping windows of at most chunkSize characters,
// preferring paragraph, sentence and word boundaries over hard cuts.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// It fails with ErrInvalidConfiguration when size is not positive, overlap is negative,
// or overlap >= size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfiguration, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap %d must not be negative", ErrInvalidConfiguration, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidConfiguration, chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split returns the chunk texts for text in document order. Empty input yields nil.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, separators)
}

// Chunk splits text into Chunks owned by docID. IDs are derived from docID and position.
func (c *Chunker) Chunk(docID, text string) []models.Chunk {
	parts := c.Split(text)
	if len(parts) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{
			ID:         fmt.Sprintf("%s_%d", docID, i),
			DocumentID: docID,
			Text:       p,
			Index:      i,
		}
	}
	return chunks
}

func (c *Chunker) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, piece := range splitAfter(text, sep) {
		if utf8.RuneCountInString(piece) <= c.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, c.merge(fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			rest = []string{""}
		}
		out = append(out, c.split(piece, rest)...)
	}
	if len(fitting) > 0 {
		out = append(out, c.merge(fitting)...)
	}
	return out
}

// merge packs consecutive pieces into windows, carrying up to chunkOverlap
// trailing characters of one window into the next.
func (c *Chunker) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		lengths []int
		total   int
	)
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > c.chunkOverlap || total+n > c.chunkSize) {
				total -= lengths[0]
				current = current[1:]
				lengths = lengths[1:]
			}
		}
		current = append(current, p)
		lengths = append(lengths, n)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitAfter splits text after each sep, keeping the separator on the left piece.
// An empty sep splits into single characters.
func splitAfter(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
