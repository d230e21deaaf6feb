package keyword

import (
	"context"
	"testing"

	"github.com/hyperjump/regubot/internal/models"
)

func newTestIndex(t *testing.T, chunks ...models.Chunk) *BleveIndex {
	t.Helper()
	idx, err := NewMemIndex()
	if err != nil {
		t.Fatalf("NewMemIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.IndexChunks(context.Background(), chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	return idx
}

var sample = []models.Chunk{
	{ID: "perpres_0", DocumentID: "perpres.pdf", Text: "Pengadaan barang/jasa melalui swakelola dilaksanakan oleh kementerian."},
	{ID: "perpres_1", DocumentID: "perpres.pdf", Text: "Tender cepat dilaksanakan untuk pengadaan dengan spesifikasi yang jelas."},
	{ID: "uu_0", DocumentID: "uu.pdf", Text: "Jasa konstruksi diselenggarakan berdasarkan asas kejujuran dan keadilan."},
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t, sample...)
	ctx := context.Background()

	n, err := idx.DocCount()
	if err != nil || n != 3 {
		t.Fatalf("DocCount = %d, %v", n, err)
	}

	results, err := idx.Search(ctx, "swakelola", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "perpres_0" {
		t.Fatalf("unexpected results for swakelola: %+v", results)
	}

	// Standard analyzer: case-insensitive, no stemming.
	results, err = idx.Search(ctx, "KONSTRUKSI", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "uu_0" {
		t.Fatalf("unexpected results for KONSTRUKSI: %+v", results)
	}
}

func TestBleveIndex_Limit(t *testing.T) {
	idx := newTestIndex(t, sample...)
	results, err := idx.Search(context.Background(), "pengadaan dilaksanakan", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	empty, _ := idx.Search(context.Background(), "   ", 5, nil)
	if len(empty) != 0 {
		t.Errorf("blank query should return nothing")
	}
}

func TestBleveIndex_PhraseBoost(t *testing.T) {
	idx := newTestIndex(t, sample...)
	results, err := idx.Search(context.Background(), "tender cepat", 3, &SearchOptions{PhraseBoost: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != "perpres_1" {
		t.Fatalf("phrase match should rank first: %+v", results)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t, sample...)
	results, err := idx.Search(context.Background(), "swakelol", 5, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != "perpres_0" {
		t.Fatalf("fuzzy search should find swakelola: %+v", results)
	}
}
