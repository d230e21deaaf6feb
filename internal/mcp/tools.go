package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/models"
)

// AskInput is the input schema for the ask_regulation tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the procurement question to answer"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to record the exchange in (optional)"`
}

// AskOutput mirrors the assistant's response envelope.
type AskOutput struct {
	Answer     string            `json:"answer"`
	Note       string            `json:"note,omitempty"`
	Warning    string            `json:"warning,omitempty"`
	SourceType models.SourceType `json:"source_type"`
}

// ListDocumentsInput is the (empty) input schema for the list_documents tool.
type ListDocumentsInput struct{}

// ListDocumentsOutput lists ingested documents.
type ListDocumentsOutput struct {
	Documents  []string `json:"documents"`
	Recognized []string `json:"recognized"`
	Chunks     int      `json:"chunks"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ask_regulation",
		Description: "Answer a question about procurement of goods/services regulations. " +
			"Answers are grounded in uploaded regulations when available and cite them as '<regulation>, Article <n>'.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the regulation documents that have been ingested and which of them are recognised catalog regulations.",
	}, s.handleListDocuments)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if input.Question == "" {
		return nil, AskOutput{}, errors.New("question is required")
	}
	s.logger.Debug("ask_regulation", zap.String("session", input.SessionID))
	env := s.assistant.Ask(ctx, input.SessionID, input.Question)
	return nil, AskOutput{
		Answer:     env.AnswerText,
		Note:       env.Note,
		Warning:    env.Warning,
		SourceType: env.SourceType,
	}, nil
}

func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	st, err := s.assistant.Status(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}
	return nil, ListDocumentsOutput{
		Documents:  st.Documents,
		Recognized: st.Recognized,
		Chunks:     st.Chunks,
	}, nil
}
