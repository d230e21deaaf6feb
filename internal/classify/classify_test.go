package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/regubot/internal/catalog"
	"github.com/hyperjump/regubot/internal/models"
)

func TestClassify(t *testing.T) {
	cat := catalog.Default()
	uploaded := models.UploadState{ProcessedFiles: []string{"Law No 3 of 2024"}}
	unrelated := models.UploadState{ProcessedFiles: []string{"meeting notes.pdf"}}

	tests := []struct {
		name     string
		question string
		state    models.UploadState
		want     Context
		uploaded []string
	}{
		{"uploaded dominates procurement question", "Does the procurement law regulate X?", uploaded, UploadedRegulations, []string{"Law No 3 of 2024"}},
		{"uploaded dominates off-topic question", "What's the weather?", uploaded, UploadedRegulations, []string{"Law No 3 of 2024"}},
		{"domain keyword without upload", "What is a tender?", models.UploadState{}, PbjNoUpload, nil},
		{"indonesian keyword", "Apa itu PENGADAAN langsung?", models.UploadState{}, PbjNoUpload, nil},
		{"non-catalog upload ignored", "What is a tender?", unrelated, PbjNoUpload, nil},
		{"off-topic", "What's the weather?", models.UploadState{}, NonPbj, nil},
		{"generic article request", "Write an article about cats", models.UploadState{}, NonPbj, nil},
		{"generic regulation question", "What regulation applies to drones?", models.UploadState{}, NonPbj, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.question, tt.state, cat)
			assert.Equal(t, tt.want, got.Context)
			assert.Equal(t, tt.uploaded, got.Uploaded)
		})
	}
}

func TestUploaded_SubstringOfFileName(t *testing.T) {
	state := models.UploadState{ProcessedFiles: []string{
		"Presidential Regulation No 16 of 2018.pdf",
		"Scan - Law No 2 of 2017 (final).pdf",
	}}
	got := Uploaded(state, catalog.Default())
	assert.Equal(t, []string{"Presidential Regulation No 16 of 2018", "Law No 2 of 2017"}, got)
}

func TestContextString(t *testing.T) {
	assert.Equal(t, "uploaded_regulations", UploadedRegulations.String())
	assert.Equal(t, "pbj_no_upload", PbjNoUpload.String())
	assert.Equal(t, "non_pbj", NonPbj.String())
}

func TestKeywords_ReturnsCopy(t *testing.T) {
	k := Keywords()
	k[0] = "weather"
	assert.False(t, IsDomainQuestion("What's the weather?"))
	assert.Equal(t, "procurement", Keywords()[0])
}
