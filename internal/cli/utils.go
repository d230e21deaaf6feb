// Package cli formats ReguBot results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/regubot/internal/assistant"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/pkg/utils"
)

// OutputFormat is the format of command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteEnvelope writes an answer in the given format.
func WriteEnvelope(w io.Writer, env models.ResponseEnvelope, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, env)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(env.AnswerText))
	if env.Note != "" || env.Warning != "" {
		fmt.Fprintln(w, rule)
	}
	if env.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", env.Note)
	}
	if env.Warning != "" {
		fmt.Fprintf(w, "Warning: %s\n", env.Warning)
	}
	fmt.Fprintf(w, "Source: %s\n\n", env.SourceType)
	return nil
}

// WriteIngestResult writes an ingestion summary in the given format.
func WriteIngestResult(w io.Writer, res *indexer.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\nIngested %d chunks\n", res.Chunks)
	for _, f := range res.Files {
		if f.Skipped {
			fmt.Fprintf(w, "  - %s: skipped (%s)\n", f.Name, f.Reason)
			continue
		}
		fmt.Fprintf(w, "  + %s: %d chunks\n", f.Name, f.Chunks)
	}
	if res.Rebuilt {
		fmt.Fprintln(w, "The index was rebuilt from this batch.")
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteStatus writes the assistant status in the given format.
func WriteStatus(w io.Writer, st *assistant.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Documents: %d\n", len(st.Documents))
	recognized := make(map[string]bool, len(st.Recognized))
	for _, r := range st.Recognized {
		recognized[r] = true
	}
	for _, d := range st.Documents {
		mark := " "
		for r := range recognized {
			if strings.Contains(d, r) {
				mark = "*"
				break
			}
		}
		fmt.Fprintf(w, "  %s %s\n", mark, d)
	}
	fmt.Fprintf(w, "Recognized regulations: %d\n", len(st.Recognized))
	fmt.Fprintf(w, "Chunks: %d (dimensions %d)\n", st.Chunks, st.Dimensions)
	fmt.Fprintf(w, "Messages: %d\n", st.Messages)
	return nil
}

// WriteHistory writes a session's messages in the given format.
func WriteHistory(w io.Writer, msgs []models.Message, format OutputFormat) error {
	if format == OutputJSON {
		if msgs == nil {
			msgs = []models.Message{}
		}
		return writeJSON(w, msgs)
	}
	for _, m := range msgs {
		fmt.Fprintln(w, rule)
		if m.CreatedAt.IsZero() {
			fmt.Fprintf(w, "[%s]\n", m.Role)
		} else {
			fmt.Fprintf(w, "[%s] %s\n", m.Role, m.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "%s\n", utils.Truncate(m.Content, 2000))
	}
	return nil
}
