package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wouteroostervld/atlas/pkg/llm"
)

// Config for OpenAI-compatible API client
type Config struct {
	BaseURL        string        // API base URL (e.g., "https://api.openai.com/v1")
	APIKey         string        // API key for authentication
	Timeout        time.Duration // HTTP timeout
	Model          string        // Chat model used by Complete
	EmbeddingModel string        // Model used by Embed
	MaxTokens      int
}

// Client wraps the OpenAI-compatible HTTP API
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	maxTokens      int
	httpClient     *http.Client
}

var _ llm.Provider = (*Client)(nil)

// NewClient creates a new OpenAI API client
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}
	return &Client{
		baseURL:        config.BaseURL,
		apiKey:         config.APIKey,
		model:          config.Model,
		embeddingModel: config.EmbeddingModel,
		maxTokens:      config.MaxTokens,
		httpClient:     &http.Client{Timeout: config.Timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete runs a chat completion at temperature 0
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		Temperature float64   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   c.maxTokens,
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error apiError `json:"error"`
	}
	if err := c.post(ctx, "/chat/completions", reqBody, &apiResp); err != nil {
		return "", err
	}

	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s (%s)", apiResp.Error.Message, apiResp.Error.Type)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no response from API")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// Embed calls the embeddings endpoint for one batch of texts
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: c.embeddingModel, Input: texts}

	var apiResp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	if err := c.post(ctx, "/embeddings", reqBody, &apiResp); err != nil {
		return nil, err
	}

	if apiResp.Error.Message != "" {
		return nil, fmt.Errorf("API error: %s (%s)", apiResp.Error.Message, apiResp.Error.Type)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	// The API reports an index per item; don't rely on response order
	out := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, preview(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, respBody); err != nil {
		return fmt.Errorf("decode response (status %d): %w. Body preview: %s", resp.StatusCode, err, preview(bodyBytes))
	}
	return nil
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
