package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

var (
	// ErrNotConfigured is returned by every call when no API key was supplied.
	ErrNotConfigured = errors.New("GEMINI_API_KEY is not configured")
	// ErrEmptyResponse is returned when the model answered without text.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// Client requests schema-constrained JSON from the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a client. An empty apiKey yields a client whose calls fail with ErrNotConfigured.
func NewClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model, logger: logger}
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set; AI generation disabled")
		return c, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return c, nil
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.client != nil
}

// GenerateJSON sends prompt and returns the raw JSON text the model produced for schema.
// The caller is responsible for decoding and validating it.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		c.logger.Error("gemini generate failed", zap.String("model", c.model), zap.Error(err))
		return nil, fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return []byte(text), nil
}
