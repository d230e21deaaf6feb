// Package models defines the data shared by ingestion, retrieval and answering.
package models

import (
	"sort"
	"time"
)

// Chunk is a bounded slice of one source document's extracted text.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Index      int    `json:"index"`
}

// Upload is a document handed to ingestion: its display name and raw bytes.
type Upload struct {
	Name string
	Data []byte
}

// UploadState is the persisted record of document names that have been ingested.
type UploadState struct {
	ProcessedFiles []string `json:"processed_files"`
}

// Contains reports whether name was processed (exact match).
func (s UploadState) Contains(name string) bool {
	for _, f := range s.ProcessedFiles {
		if f == name {
			return true
		}
	}
	return false
}

// Merge returns the set union of the current names and names, sorted and without duplicates.
// Ingesting a new batch never forgets previously processed names.
func (s UploadState) Merge(names ...string) UploadState {
	seen := make(map[string]struct{}, len(s.ProcessedFiles)+len(names))
	out := make([]string, 0, len(s.ProcessedFiles)+len(names))
	for _, list := range [][]string{s.ProcessedFiles, names} {
		for _, n := range list {
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return UploadState{ProcessedFiles: out}
}

// Message is one entry of a chat session's history.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
