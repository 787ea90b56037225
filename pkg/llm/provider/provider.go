// Package provider builds embedding and completion backends from a profile.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/wouteroostervld/atlas/pkg/config"
	"github.com/wouteroostervld/atlas/pkg/llm"
	"github.com/wouteroostervld/atlas/pkg/llm/gemini"
	"github.com/wouteroostervld/atlas/pkg/llm/ollama"
	"github.com/wouteroostervld/atlas/pkg/llm/openai"
)

// ErrUnknownProvider is returned for provider names with no backend
var ErrUnknownProvider = errors.New("unknown provider")

// NewEmbedder returns the embedding backend named by cfg.Provider
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (llm.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(&openai.Config{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			EmbeddingModel: cfg.Model,
		}), nil
	case "ollama":
		return ollama.NewClient(&ollama.Config{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			EmbeddingModel: cfg.Model,
		}), nil
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.Model,
		})
	default:
		return nil, fmt.Errorf("%w for embedding: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// NewCompleter returns the completion backend named by cfg.Provider
func NewCompleter(ctx context.Context, cfg config.LLMConfig) (llm.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(&openai.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Timeout:   cfg.Timeout,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}), nil
	case "ollama":
		return ollama.NewClient(&ollama.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
			Model:   cfg.Model,
		}), nil
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			MaxTokens: cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("%w for llm: %q", ErrUnknownProvider, cfg.Provider)
	}
}
