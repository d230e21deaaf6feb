package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegulation = `Article 1
In this Presidential Regulation, procurement of goods and services means the activity of obtaining goods or services by a ministry, agency or regional apparatus.

Article 2
The procurement is carried out through self-management and/or through providers. Providers are selected by tender, quick tender, direct appointment, direct procurement or e-purchasing.

Article 3
The budget user may delegate authority to the commitment-making official. The commitment-making official prepares the procurement plan, determines the self-estimated price and the contract draft.`

func TestNewChunker_invalidConfiguration(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"size one overlap one", 1, 1},
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
			assert.Nil(t, c)
		})
	}
}

func TestChunker_Split_empty(t *testing.T) {
	c, err := NewChunker(100, 10)
	require.NoError(t, err)
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
	assert.Nil(t, c.Chunk("doc", ""))
}

func TestChunker_Split_respectsSize(t *testing.T) {
	c, err := NewChunker(120, 20)
	require.NoError(t, err)
	chunks := c.Split(sampleRegulation)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 120, "chunk %d too long", i)
		assert.NotEmpty(t, ch)
		assert.Contains(t, sampleRegulation, ch, "chunk %d is not a contiguous slice", i)
	}
}

func TestChunker_Split_deterministicAndOrdered(t *testing.T) {
	c, err := NewChunker(80, 15)
	require.NoError(t, err)
	first := c.Split(sampleRegulation)
	second := c.Split(sampleRegulation)
	assert.Equal(t, first, second)

	pos := 0
	for i, ch := range first {
		// Overlap may move the start back by at most chunkOverlap characters.
		from := pos - 15
		if from < 0 {
			from = 0
		}
		idx := strings.Index(sampleRegulation[from:], ch)
		require.GreaterOrEqual(t, idx, 0, "chunk %d out of order", i)
		pos = from + idx + len(ch)
	}
}

func TestChunker_Split_reconstructsWithoutOverlap(t *testing.T) {
	c, err := NewChunker(90, 0)
	require.NoError(t, err)
	chunks := c.Split(sampleRegulation)
	squash := func(s string) string { return strings.Join(strings.Fields(s), "") }
	assert.Equal(t, squash(sampleRegulation), squash(strings.Join(chunks, "")))
}

func TestChunker_Split_overlapRepeatsText(t *testing.T) {
	c, err := NewChunker(20, 8)
	require.NoError(t, err)
	chunks := c.Split("alpha beta gamma delta epsilon zeta eta theta")
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		last := prevWords[len(prevWords)-1]
		assert.True(t, strings.HasPrefix(chunks[i], last), "chunk %d %q should start with %q", i, chunks[i], last)
	}
}

func TestChunker_Split_hardCutLongWord(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)
	word := strings.Repeat("x", 35)
	chunks := c.Split(word)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 10)
	}
	assert.Equal(t, strings.Repeat("x", 10), chunks[0])
}

func TestChunker_Chunk(t *testing.T) {
	c, err := NewChunker(60, 10)
	require.NoError(t, err)
	chunks := c.Chunk("doc1", sampleRegulation)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, "doc1", ch.DocumentID)
		assert.Equal(t, i, ch.Index)
		assert.NotEmpty(t, ch.ID)
	}
	assert.Equal(t, chunks, c.Chunk("doc1", sampleRegulation))
}

func TestPreprocess(t *testing.T) {
	in := "  Article  1\r\n\tText here  \n\n\n\nArticle 2  "
	assert.Equal(t, "Article 1\nText here\n\nArticle 2", Preprocess(in))
	assert.Equal(t, "", Preprocess(" \n\n "))
}
