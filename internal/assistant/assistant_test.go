package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/regubot/internal/catalog"
	"github.com/hyperjump/regubot/internal/embedding"
	"github.com/hyperjump/regubot/internal/extract"
	"github.com/hyperjump/regubot/internal/generate"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/internal/prompt"
	"github.com/hyperjump/regubot/internal/search"
	"github.com/hyperjump/regubot/internal/storage"
	"github.com/hyperjump/regubot/internal/vector"
)

const lawText = `Article 1
This law regulates the procurement of goods and services by state institutions.

Article 2
Procurement committees must publish every tender on the electronic procurement system.`

// recorder is a generator that remembers its prompts.
type recorder struct {
	prompts []string
	answer  string
	err     error
}

func (r *recorder) Generate(_ context.Context, p string) (string, error) {
	r.prompts = append(r.prompts, p)
	return r.answer, r.err
}

type harness struct {
	svc     *Service
	gen     *recorder
	indexer *indexer.Indexer
	history *storage.SQLiteHistory
	engine  *search.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	store := vector.NewStore(filepath.Join(dir, "regulation_index.bin"), embedding.NewMockEmbedder(64))
	state := storage.NewJSONStateStore(filepath.Join(dir, "app_state.json"))
	chunker, err := indexer.NewChunker(120, 20)
	require.NoError(t, err)
	history, err := storage.NewSQLiteHistory(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })
	engine := search.NewEngine(store, search.Config{Hybrid: true})
	t.Cleanup(func() { _ = engine.Close() })

	gen := &recorder{}
	return &harness{
		svc:     NewService(store, state, engine, gen, catalog.Default(), WithHistory(history)),
		gen:     gen,
		indexer: indexer.NewIndexer(store, state, chunker, extract.NewExtractor()),
		history: history,
		engine:  engine,
	}
}

func (h *harness) ingest(t *testing.T, name, text string) {
	t.Helper()
	_, err := h.indexer.Ingest(context.Background(), []models.Upload{{Name: name, Data: []byte(text)}})
	require.NoError(t, err)
}

func TestAsk_EndToEndGrounded(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "Law No 3 of 2024", lawText)
	h.gen.answer = "Answer:\nYes, see Law No 3 of 2024, Article 2 and Law No 3 of 2024, Article 40.\n\n" +
		"Regulatory Source:\nLaw No 3 of 2024, Article 2; Presidential Regulation No 54 of 2010"

	env := h.svc.Ask(context.Background(), "s1", "Does the procurement law regulate tender publication?")

	require.Len(t, h.gen.prompts, 1, "generation client must be invoked once")
	p := h.gen.prompts[0]
	assert.Contains(t, p, "Context:")
	assert.Contains(t, p, "electronic procurement system")
	assert.Contains(t, p, prompt.SourceHeading)

	assert.Equal(t, models.SourceRegulation, env.SourceType)
	assert.Contains(t, env.Note, "Law No 3 of 2024")
	assert.Empty(t, env.Warning)
	assert.Contains(t, env.AnswerText, "Law No 3 of 2024, Article 2 and")
	assert.Contains(t, env.AnswerText, "Law No 3 of 2024 (article not verifiable)")
	assert.Contains(t, env.AnswerText, "Presidential Regulation No 54 of 2010 (excluded from use)")

	msgs, err := h.svc.History(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, env.AnswerText, msgs[1].Content)
}

func TestAsk_UploadDominatesQuestionContent(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "Law No 3 of 2024", lawText)
	h.gen.answer = "Answer:\nNot covered."

	env := h.svc.Ask(context.Background(), "", "What's the weather?")
	assert.Equal(t, models.SourceRegulation, env.SourceType)
	assert.Len(t, h.gen.prompts, 1)
}

func TestAsk_ProcurementWithoutUpload(t *testing.T) {
	h := newHarness(t)
	h.gen.answer = "Answer:\nA tender is a competitive selection."

	env := h.svc.Ask(context.Background(), "", "What is a tender?")

	assert.Equal(t, models.SourceExternal, env.SourceType)
	assert.NotEmpty(t, env.Warning)
	assert.Equal(t, "Answer:\nA tender is a competitive selection.", env.AnswerText)
	require.Len(t, h.gen.prompts, 1)
	assert.NotContains(t, h.gen.prompts[0], "Context:")
}

func TestAsk_UncataloguedUploadIsNotGrounding(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "meeting notes.txt", "Minutes of the weekly meeting about office supplies.")
	h.gen.answer = "ok"

	env := h.svc.Ask(context.Background(), "", "What is a tender?")
	assert.Equal(t, models.SourceExternal, env.SourceType)
}

func TestAsk_OutOfScope(t *testing.T) {
	h := newHarness(t)

	env := h.svc.Ask(context.Background(), "", "What's the weather?")

	assert.Equal(t, models.SourceNone, env.SourceType)
	assert.Equal(t, scopeNotice, env.AnswerText)
	assert.Empty(t, h.gen.prompts, "no generation call outside procurement")
}

func TestAsk_GenerationFailureBecomesText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"status", &generate.StatusError{Code: 503}, "status 503"},
		{"transport", generate.ErrTransport, "could not be reached"},
		{"format", generate.ErrFormat, "could not be read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gen.err = tt.err

			env := h.svc.Ask(context.Background(), "", "What is a tender?")
			assert.Equal(t, models.SourceNone, env.SourceType)
			assert.Contains(t, env.AnswerText, tt.want)
		})
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	h := newHarness(t)
	env := h.svc.Ask(context.Background(), "s1", "   ")
	assert.Equal(t, models.SourceNone, env.SourceType)
	assert.Empty(t, h.gen.prompts)

	n, err := h.history.CountMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, *vector.Index, string, int) ([]search.Result, error) {
	return nil, errors.New("embedding quota exceeded")
}

func TestAsk_RetrievalFailureBecomesText(t *testing.T) {
	h := newHarness(t)
	h.ingest(t, "Law No 3 of 2024", lawText)
	h.svc.retriever = failingRetriever{}

	env := h.svc.Ask(context.Background(), "", "Does the procurement law regulate X?")
	assert.Equal(t, models.SourceNone, env.SourceType)
	assert.Equal(t, retrieveFailed, env.AnswerText)
	assert.Empty(t, h.gen.prompts)
}

func TestHistory_GreetingAndClear(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	msgs, err := h.svc.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, Greeting, msgs[0].Content)

	h.gen.answer = "ok"
	h.svc.Ask(ctx, "s1", "What is a tender?")
	h.svc.Ask(ctx, "s2", "What is a tender?")

	require.NoError(t, h.svc.ClearHistory(ctx, "s1"))
	msgs, err = h.svc.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, Greeting, msgs[0].Content)

	msgs, err = h.svc.History(ctx, "s2", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	st, err := h.svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Documents)
	assert.Zero(t, st.Chunks)

	h.ingest(t, "Law No 3 of 2024", lawText)
	h.ingest(t, "notes.txt", "unrelated")

	st, err = h.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Law No 3 of 2024", "notes.txt"}, st.Documents)
	assert.Equal(t, []string{"Law No 3 of 2024"}, st.Recognized)
	assert.Positive(t, st.Chunks)
	assert.Equal(t, 64, st.Dimensions)

	docs, err := h.svc.Documents(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.Join(docs, ","), "Law No 3 of 2024"))
}
