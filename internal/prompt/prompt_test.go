package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/regubot/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Entry{
		{Name: "Law No 3 of 2024", Articles: catalog.Range(1, 2)},
		{Name: "Presidential Regulation No 4 of 2015", Articles: catalog.Range(1, 10)},
		{Name: "Circular No 3 of 2020"},
	}, []string{"Presidential Regulation No 4 of 2015"}, nil)
	require.NoError(t, err)
	return c
}

func TestBuild_ListsUsableRegulationsInOrder(t *testing.T) {
	p := Build("What is a tender?", true, testCatalog(t))

	assert.Contains(t, p, "1. Law No 3 of 2024\n")
	assert.Contains(t, p, "2. Circular No 3 of 2020\n")
	assert.NotContains(t, p, ". Presidential Regulation No 4 of 2015\n")
	assert.Contains(t, p, "Do not use the following regulations as a source")
	assert.Contains(t, p, "Presidential Regulation No 4 of 2015.")
}

func TestBuild_PreambleDependsOnUpload(t *testing.T) {
	cat := testCatalog(t)
	grounded := Build("q", true, cat)
	ungrounded := Build("q", false, cat)

	assert.True(t, strings.HasPrefix(grounded, groundedPreamble))
	assert.True(t, strings.HasPrefix(ungrounded, ungroundedPreamble))
	assert.NotEqual(t, grounded, ungrounded)
}

func TestBuild_OutputShape(t *testing.T) {
	p := Build("  What is a tender?  ", false, testCatalog(t))
	answer := strings.Index(p, "\nAnswer:\n")
	source := strings.Index(p, "\nRegulatory Source:\n")
	require.NotEqual(t, -1, answer)
	require.NotEqual(t, -1, source)
	assert.Less(t, answer, source)
	assert.Contains(t, p, "Question:\nWhat is a tender?\n")
	assert.NotContains(t, p, "Context:")
}

func TestBuild_Passages(t *testing.T) {
	p := Build("q", true, testCatalog(t), "first excerpt", " second excerpt\n")
	assert.Contains(t, p, "Context:\n[1] first excerpt\n[2] second excerpt\n")
	assert.Less(t, strings.Index(p, "Context:"), strings.Index(p, "Question:"))
}

func TestBuild_Deterministic(t *testing.T) {
	cat := testCatalog(t)
	assert.Equal(t, Build("q", true, cat, "x"), Build("q", true, cat, "x"))
}
