package models

// SourceType tells the caller what an answer is backed by.
type SourceType string

const (
	// SourceRegulation: grounded in at least one uploaded, catalog-recognised regulation.
	SourceRegulation SourceType = "regulation"
	// SourceExternal: relies on the generation service's general knowledge.
	SourceExternal SourceType = "external"
	// SourceNone: no answer was generated.
	SourceNone SourceType = "none"
)

// ResponseEnvelope is returned to the caller for every question. It is never persisted.
type ResponseEnvelope struct {
	AnswerText string     `json:"answer_text"`
	Note       string     `json:"note,omitempty"`
	Warning    string     `json:"warning,omitempty"`
	SourceType SourceType `json:"source_type"`
}
