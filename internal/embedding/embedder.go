// Package embedding turns text into vectors for the similarity index.
package embedding

import "context"

// Embedder produces vector embeddings for text. The same embedder must be used to
// build an index and to query it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
