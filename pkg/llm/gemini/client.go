package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/wouteroostervld/atlas/pkg/llm"
)

// ErrEmptyResponse is returned when the model produced no text parts
var ErrEmptyResponse = errors.New("gemini returned no content")

// Config for the Gemini client. An empty APIKey lets the SDK read GEMINI_API_KEY.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string        // Optional endpoint override
	Timeout        time.Duration // Per-call deadline; zero means none
	MaxTokens      int           // Output token cap for Complete; zero leaves the model default
}

// Client is a thin wrapper around the official genai client
type Client struct {
	cli            *genai.Client
	model          string
	embeddingModel string
	timeout        time.Duration
	maxTokens      int32
}

var _ llm.Provider = (*Client)(nil)

// NewClient creates a Gemini API client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		cli:            cli,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
		maxTokens:      int32(cfg.MaxTokens),
	}, nil
}

// Complete generates text at temperature 0 with the system instruction attached
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			Temperature:       genai.Ptr[float32](0),
			MaxOutputTokens:   c.maxTokens,
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// Embed embeds one batch of texts, one content per text
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := c.cli.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
