package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/hyperjump/regubot/pkg/utils"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultGeminiModel is the embedding model the regulation index is built with.
	DefaultGeminiModel = "text-embedding-004"

	// DefaultGeminiDimensions matches text-embedding-004.
	DefaultGeminiDimensions = 768

	// geminiMaxBatch is the per-request limit of batchEmbedContents.
	geminiMaxBatch = 100
)

// GeminiEmbedder calls the Gemini batchEmbedContents endpoint. Requests are paced with a
// token bucket and retried with exponential backoff on 429 and 5xx responses.
type GeminiEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	batchSize  int
	client     *http.Client
	limiter    *rate.Limiter
	maxElapsed time.Duration
}

// GeminiOption configures a GeminiEmbedder.
type GeminiOption func(*GeminiEmbedder)

// WithGeminiBaseURL overrides the API base URL (used by tests).
func WithGeminiBaseURL(u string) GeminiOption {
	return func(e *GeminiEmbedder) {
		if u != "" {
			e.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithGeminiHTTPClient sets the HTTP client.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(e *GeminiEmbedder) {
		if c != nil {
			e.client = c
		}
	}
}

// WithGeminiRateLimit limits requests per second. rps <= 0 disables pacing.
func WithGeminiRateLimit(rps float64, burst int) GeminiOption {
	return func(e *GeminiEmbedder) {
		if rps <= 0 {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithGeminiBatchSize sets how many texts go into one request (capped at 100).
func WithGeminiBatchSize(n int) GeminiOption {
	return func(e *GeminiEmbedder) {
		if n > 0 && n <= geminiMaxBatch {
			e.batchSize = n
		}
	}
}

// WithGeminiMaxElapsed bounds the total time spent retrying one batch.
func WithGeminiMaxElapsed(d time.Duration) GeminiOption {
	return func(e *GeminiEmbedder) {
		e.maxElapsed = d
	}
}

// NewGeminiEmbedder creates an embedder for the given model. Empty model and zero
// dimensions fall back to text-embedding-004 and 768.
func NewGeminiEmbedder(apiKey, model string, dimensions int, opts ...GeminiOption) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if dimensions <= 0 {
		dimensions = DefaultGeminiDimensions
	}
	e := &GeminiEmbedder{
		baseURL:    DefaultGeminiBaseURL,
		apiKey:     apiKey,
		model:      strings.TrimPrefix(model, "models/"),
		dimensions: dimensions,
		batchSize:  geminiMaxBatch,
		client:     &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		maxElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the embedding of a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving order.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vecs, err := e.embedWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions returns the configured output dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *GeminiEmbedder) Close() error {
	return nil
}

type apiStatusError struct {
	code int
	body string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("gemini embeddings: status %d: %s", e.code, e.body)
}

func (e *apiStatusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (e *GeminiEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32

	operation := func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		v, err := e.embedOnce(ctx, texts)
		if err != nil {
			if se, ok := err.(*apiStatusError); ok && !se.retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		vecs = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = e.maxElapsed

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vecs, err
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

func (e *GeminiEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqs := make([]geminiEmbedRequest, len(texts))
	for i, t := range texts {
		reqs[i] = geminiEmbedRequest{
			Model:   "models/" + e.model,
			Content: geminiContent{Parts: []geminiPart{{Text: t}}},
		}
	}
	payload, err := json.Marshal(map[string]any{"requests": reqs})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("encode request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apiStatusError{code: resp.StatusCode, body: truncateBody(body)}
	}

	embeddings := gjson.GetBytes(body, "embeddings").Array()
	if len(embeddings) != len(texts) {
		return nil, backoff.Permanent(fmt.Errorf("gemini embeddings: got %d vectors for %d texts", len(embeddings), len(texts)))
	}
	out := make([][]float32, len(embeddings))
	for i, emb := range embeddings {
		values := emb.Get("values").Array()
		if len(values) == 0 {
			return nil, backoff.Permanent(fmt.Errorf("gemini embeddings: empty vector at %d", i))
		}
		v := make([]float32, len(values))
		for j, x := range values {
			v[j] = float32(x.Float())
		}
		out[i] = v
	}
	return out, nil
}

func truncateBody(b []byte) string {
	return utils.Truncate(strings.TrimSpace(string(b)), 200)
}
