// Package assistant answers procurement-regulation questions: it classifies the
// question, retrieves passages from uploaded regulations, asks the generation
// service and validates the citations in its answer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/catalog"
	"github.com/hyperjump/regubot/internal/citation"
	"github.com/hyperjump/regubot/internal/classify"
	"github.com/hyperjump/regubot/internal/generate"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/internal/prompt"
	"github.com/hyperjump/regubot/internal/search"
	"github.com/hyperjump/regubot/internal/storage"
	"github.com/hyperjump/regubot/internal/vector"
)

const (
	// Greeting seeds every new or cleared conversation.
	Greeting = "Ask anything about procurement of goods/services regulations."

	// DefaultTopK is how many passages ground an answer.
	DefaultTopK = 4

	scopeNotice     = "I can only answer questions about the procurement of goods/services and its regulations. Please rephrase your question around procurement."
	noUploadWarning = "No procurement regulation from the catalog has been uploaded yet. This answer relies on general knowledge and should be checked against the official texts."
	emptyQuestion   = "Please type a question."
	retrieveFailed  = "The uploaded regulations could not be searched right now. Please try again later."
)

// IndexLoader returns the current similarity index handle.
type IndexLoader interface {
	Load(ctx context.Context) *vector.Index
}

// Retriever finds passages of an index relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, idx *vector.Index, question string, k int) ([]search.Result, error)
}

// Status summarises what the assistant can answer from.
type Status struct {
	Documents []string `json:"documents"`
	// Recognized lists catalog regulations present among the documents.
	Recognized []string `json:"recognized"`
	Chunks     int      `json:"chunks"`
	Dimensions int      `json:"dimensions"`
	Messages   int64    `json:"messages"`
}

// Service runs the answer pipeline. It is safe for concurrent use when its
// collaborators are.
type Service struct {
	index     IndexLoader
	state     storage.StateStore
	retriever Retriever
	generator generate.Generator
	catalog   *catalog.Catalog
	history   storage.HistoryStore
	logger    *zap.Logger
	topK      int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory records every exchange in h.
func WithHistory(h storage.HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithTopK sets how many passages are retrieved per grounded answer.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// NewService wires the pipeline. A nil catalog means catalog.Default().
func NewService(index IndexLoader, state storage.StateStore, retriever Retriever, generator generate.Generator, cat *catalog.Catalog, opts ...Option) *Service {
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Service{
		index:     index,
		state:     state,
		retriever: retriever,
		generator: generator,
		catalog:   cat,
		logger:    zap.NewNop(),
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers question. It never fails: every problem is reported as text in the
// returned envelope. When sessionID is non-empty and a history store is set, the
// question and the answer are appended to that session.
func (s *Service) Ask(ctx context.Context, sessionID, question string) models.ResponseEnvelope {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.ResponseEnvelope{AnswerText: emptyQuestion, SourceType: models.SourceNone}
	}
	s.record(ctx, sessionID, models.RoleUser, question)

	idx := s.index.Load(ctx)
	decision := classify.Classify(question, s.uploadState(ctx, idx), s.catalog)
	s.logger.Debug("Question classified",
		zap.String("session", sessionID),
		zap.Stringer("context", decision.Context),
		zap.Strings("uploaded", decision.Uploaded))

	var env models.ResponseEnvelope
	switch decision.Context {
	case classify.UploadedRegulations:
		env = s.answerGrounded(ctx, idx, question, decision.Uploaded)
	case classify.PbjNoUpload:
		env = s.answerUngrounded(ctx, question)
	case classify.NonPbj:
		env = models.ResponseEnvelope{AnswerText: scopeNotice, SourceType: models.SourceNone}
	default:
		panic(fmt.Sprintf("assistant: unhandled question context %v", decision.Context))
	}

	s.record(ctx, sessionID, models.RoleAssistant, env.AnswerText)
	return env
}

// uploadState is the persisted upload state, or an empty one when there is no index
// to ground answers in or the state cannot be read.
func (s *Service) uploadState(ctx context.Context, idx *vector.Index) models.UploadState {
	if idx == nil || idx.Empty() {
		return models.UploadState{}
	}
	state, err := s.state.Load(ctx)
	if err != nil {
		s.logger.Warn("Upload state unreadable, answering without uploads", zap.Error(err))
		return models.UploadState{}
	}
	return state
}

func (s *Service) answerGrounded(ctx context.Context, idx *vector.Index, question string, uploaded []string) models.ResponseEnvelope {
	results, err := s.retriever.Retrieve(ctx, idx, question, s.topK)
	if err != nil {
		s.logger.Error("Retrieval failed", zap.Error(err))
		return models.ResponseEnvelope{AnswerText: retrieveFailed, SourceType: models.SourceNone}
	}
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Chunk.Text
		s.logger.Debug("Retrieved passage",
			zap.String("document", r.Chunk.DocumentID),
			zap.Float64("score", r.Score),
			zap.String("snippet", search.Snippet(r.Chunk.Text, 120)),
		)
	}

	answer, ok := s.generate(ctx, prompt.Build(question, true, s.catalog, passages...))
	if !ok {
		return models.ResponseEnvelope{AnswerText: answer, SourceType: models.SourceNone}
	}
	return models.ResponseEnvelope{
		AnswerText: answer,
		Note:       "Answer grounded in the uploaded regulations: " + strings.Join(uploaded, "; ") + ".",
		SourceType: models.SourceRegulation,
	}
}

func (s *Service) answerUngrounded(ctx context.Context, question string) models.ResponseEnvelope {
	answer, ok := s.generate(ctx, prompt.Build(question, false, s.catalog))
	if !ok {
		return models.ResponseEnvelope{AnswerText: answer, SourceType: models.SourceNone}
	}
	return models.ResponseEnvelope{
		AnswerText: answer,
		Warning:    noUploadWarning,
		SourceType: models.SourceExternal,
	}
}

// generate returns the validated answer, or a placeholder and false on failure.
func (s *Service) generate(ctx context.Context, p string) (string, bool) {
	start := time.Now()
	text, err := s.generator.Generate(ctx, p)
	if err != nil {
		s.logger.Error("Generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return generate.Placeholder(err), false
	}
	s.logger.Debug("Answer generated", zap.Duration("elapsed", time.Since(start)), zap.Int("length", len(text)))
	return citation.Validate(text, s.catalog, s.catalog.Exclusions()), true
}

func (s *Service) record(ctx context.Context, sessionID string, role models.Role, content string) {
	if s.history == nil || sessionID == "" {
		return
	}
	if err := s.history.Append(ctx, &models.Message{SessionID: sessionID, Role: role, Content: content}); err != nil {
		s.logger.Warn("Failed to record message", zap.String("session", sessionID), zap.Error(err))
	}
}

// History returns the latest limit messages of a session (all when limit <= 0),
// oldest first. A session with no messages starts with the greeting.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if s.history == nil {
		return []models.Message{greeting(sessionID)}, nil
	}
	msgs, err := s.history.Messages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if len(msgs) == 0 {
		return []models.Message{greeting(sessionID)}, nil
	}
	return msgs, nil
}

// ClearHistory forgets a session's messages and reseeds it with the greeting.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	if s.history == nil {
		return nil
	}
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if err := s.history.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	g := greeting(sessionID)
	if err := s.history.Append(ctx, &g); err != nil {
		return fmt.Errorf("failed to seed history: %w", err)
	}
	return nil
}

// Documents lists the names of ingested documents.
func (s *Service) Documents(ctx context.Context) ([]string, error) {
	state, err := s.state.Load(ctx)
	if err != nil {
		return nil, err
	}
	return state.ProcessedFiles, nil
}

// Status reports the ingested documents and index size.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	idx := s.index.Load(ctx)
	state, err := s.state.Load(ctx)
	if err != nil {
		s.logger.Warn("Upload state unreadable, listing indexed documents", zap.Error(err))
		state = models.UploadState{}.Merge(idx.Documents()...)
	}
	st := &Status{
		Documents:  state.ProcessedFiles,
		Recognized: classify.Uploaded(state, s.catalog),
		Chunks:     idx.Len(),
		Dimensions: idx.Dimensions(),
	}
	if st.Documents == nil {
		st.Documents = []string{}
	}
	if st.Recognized == nil {
		st.Recognized = []string{}
	}
	if s.history != nil {
		n, err := s.history.CountMessages(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		st.Messages = n
	}
	return st, nil
}

// Catalog returns the regulation catalog answers are checked against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func greeting(sessionID string) models.Message {
	return models.Message{SessionID: sessionID, Role: models.RoleAssistant, Content: Greeting}
}
