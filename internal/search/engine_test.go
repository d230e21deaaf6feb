package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/regubot/internal/embedding"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/internal/vector"
)

func buildIndex(t *testing.T, texts ...string) (*vector.Store, *vector.Index) {
	t.Helper()
	store := vector.NewStore(filepath.Join(t.TempDir(), "index.bin"), embedding.NewMockEmbedder(128))
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{ID: fmt.Sprintf("doc_%d", i), DocumentID: "doc", Index: i, Text: text}
	}
	res, err := store.CreateOrUpdate(context.Background(), chunks)
	require.NoError(t, err)
	return store, res.Index
}

var corpus = []string{
	"Weather and holidays are not covered by this document.",
	"Tender evaluation is carried out by the selection working group.",
	"Swakelola is procurement carried out by the ministry itself.",
	"Contract payment follows the work progress.",
}

func TestEngine_VectorOnly(t *testing.T) {
	store, idx := buildIndex(t, corpus...)
	e := NewEngine(store, Config{})
	defer e.Close()

	got, err := e.Retrieve(context.Background(), idx, "tender evaluation", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc_1", got[0].Chunk.ID)
	assert.Zero(t, got[0].KeywordScore)
}

func TestEngine_Hybrid(t *testing.T) {
	store, idx := buildIndex(t, corpus...)
	e := NewEngine(store, Config{Hybrid: true, PhraseBoost: 1.5})
	defer e.Close()

	got, err := e.Retrieve(context.Background(), idx, "swakelola", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "doc_2", got[0].Chunk.ID)
	assert.Greater(t, got[0].KeywordScore, 0.0)
	assert.LessOrEqual(t, len(got), 3)
}

func TestEngine_RebuildsKeywordIndexForNewHandle(t *testing.T) {
	store, idx := buildIndex(t, corpus...)
	e := NewEngine(store, Config{Hybrid: true})
	defer e.Close()
	ctx := context.Background()

	_, err := e.Retrieve(ctx, idx, "contract", 1)
	require.NoError(t, err)

	res, err := store.CreateOrUpdate(ctx, []models.Chunk{{ID: "new_0", DocumentID: "new", Text: "Katalog elektronik memuat produk."}})
	require.NoError(t, err)

	got, err := e.Retrieve(ctx, res.Index, "katalog elektronik", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new_0", got[0].Chunk.ID)
}

func TestEngine_EmptyInputs(t *testing.T) {
	store, idx := buildIndex(t, corpus...)
	e := NewEngine(store, Config{Hybrid: true})
	defer e.Close()
	ctx := context.Background()

	_, err := e.Retrieve(ctx, idx, "   ", 3)
	require.ErrorIs(t, err, ErrEmptyQuery)

	got, err := e.Retrieve(ctx, vector.NewIndex(0), "tender", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
