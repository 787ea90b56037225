package llm

import "context"

// Embedder turns texts into vectors. Output order matches input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a free-text completion for a system instruction and user prompt
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Provider is a backend that can both embed and complete
type Provider interface {
	Embedder
	Completer
}
