package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wouteroostervld/atlas/pkg/llm"
)

// Config for Ollama client
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	APIKey         string // Optional, for proxies that require a bearer token
	Model          string
	EmbeddingModel string
	MaxRetries     int
	RetryDelay     time.Duration
}

// Client wraps the Ollama HTTP API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	apiKey         string
	model          string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
}

var _ llm.Provider = (*Client)(nil)

// NewClient creates a new Ollama API client
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	return &Client{
		baseURL:        config.BaseURL,
		httpClient:     &http.Client{Timeout: config.Timeout},
		apiKey:         config.APIKey,
		model:          config.Model,
		embeddingModel: config.EmbeddingModel,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
	}
}

// Embed generates embeddings for one batch of texts
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp EmbedResponse
	if err := c.doRequestWithRetry(ctx, "/api/embed", EmbedRequest{Model: c.embeddingModel, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// Complete produces a non-streamed completion with fixed sampling
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := GenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		System:  system,
		Stream:  false,
		Options: Options{Temperature: 0, Seed: 42},
	}
	var resp GenerateResponse
	if err := c.doRequestWithRetry(ctx, "/api/generate", req, &resp); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Response, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status: %d", resp.StatusCode)
	}
	return nil
}

// doRequestWithRetry retries connection errors and 5xx responses
func (c *Client) doRequestWithRetry(ctx context.Context, path string, reqBody any, respBody any) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("Retrying Ollama request", "path", path, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		retry, err := c.doRequest(ctx, path, data, respBody)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, path string, data []byte, respBody any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	return false, json.NewDecoder(resp.Body).Decode(respBody)
}
