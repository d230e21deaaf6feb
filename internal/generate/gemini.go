package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/hyperjump/regubot/pkg/utils"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-1.5-flash"
	// DefaultTemperature matches the tone the prompts were written for.
	DefaultTemperature = 0.3

	answerPath = "candidates.0.content.parts.0.text"
)

// GeminiClient calls models/{model}:generateContent.
type GeminiClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	logger      *zap.Logger
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithGeminiBaseURL overrides the API base URL.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(c *GeminiClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithGeminiHTTPClient sets the HTTP client; its Timeout bounds each call.
func WithGeminiHTTPClient(h *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		if h != nil {
			c.client = h
		}
	}
}

// WithGeminiTemperature sets the sampling temperature.
func WithGeminiTemperature(t float64) GeminiOption {
	return func(c *GeminiClient) {
		c.temperature = t
	}
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *zap.Logger) GeminiOption {
	return func(c *GeminiClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewGeminiClient creates a client for model (DefaultGeminiModel when empty).
func NewGeminiClient(apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini client: api key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	c := &GeminiClient{
		baseURL:     DefaultGeminiBaseURL,
		apiKey:      apiKey,
		model:       strings.TrimPrefix(model, "models/"),
		temperature: DefaultTemperature,
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

// Generate sends prompt and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	c.logger.Debug("Generation call finished",
		zap.String("model", c.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", &StatusError{Code: resp.StatusCode, Body: utils.Truncate(msg, 300)}
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: response is not JSON", ErrFormat)
	}
	answer := gjson.GetBytes(body, answerPath)
	if !answer.Exists() || answer.Type != gjson.String {
		reason := gjson.GetBytes(body, "promptFeedback.blockReason").String()
		if reason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrFormat, reason)
		}
		return "", fmt.Errorf("%w: no text at %s", ErrFormat, answerPath)
	}
	return answer.String(), nil
}

