// Package vision implements the vision-LLM page converter on top of
// Google's Gemini API. Each call converts one page image into markdown;
// concurrency against the endpoint is governed entirely by the caller.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// Common vision errors
var (
	ErrEmptyAPIKey   = errors.New("vision API key cannot be empty")
	ErrEmptyPage     = errors.New("page data cannot be empty")
	ErrEmptyModel    = errors.New("model name cannot be empty")
	ErrEmptyResponse = errors.New("vision model returned no content")
)

// pagePrompt instructs the model to transcribe a page image to markdown.
const pagePrompt = `Convert this document page image to clean markdown.
Preserve headings, lists, and tables. Transcribe text exactly; do not
summarize, translate, or add commentary. Output markdown only.`

// Page is one unit of vision conversion work.
type Page struct {
	Number   int
	Data     []byte
	MIMEType string
}

// Client converts document page images to markdown via the Gemini API.
type Client struct {
	client *genai.Client
	logger *slog.Logger
}

// NewClient creates a vision client authenticated with the given API key.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// ConvertPage converts a single page image to markdown using the given
// model. The call blocks on the inference request; cancellation flows
// through ctx.
func (c *Client) ConvertPage(ctx context.Context, model string, page Page) (string, error) {
	if model == "" {
		return "", ErrEmptyModel
	}
	if len(page.Data) == 0 {
		return "", ErrEmptyPage
	}

	mimeType := page.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(page.Data, mimeType),
		genai.NewPartFromText(pagePrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	c.logger.Debug("converting page",
		"model", model,
		"page", page.Number,
		"bytes", len(page.Data))

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("vision inference failed for page %d: %w", page.Number, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: page %d", ErrEmptyResponse, page.Number)
	}

	return text, nil
}
