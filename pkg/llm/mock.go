package llm

import (
	"context"
	"sync"
)

// MockClient is a Provider for tests with configurable responses and call tracking
type MockClient struct {
	mu sync.Mutex

	EmbedFunc    func(ctx context.Context, texts []string) ([][]float32, error)
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

	EmbedCalls    [][]string
	CompleteCalls []CompleteCall
}

// CompleteCall records one Complete invocation
type CompleteCall struct {
	System string
	Prompt string
}

// NewMockClient returns a mock that embeds each text as a small deterministic
// vector and answers every prompt with an empty string
func NewMockClient(dim int) *MockClient {
	return &MockClient{
		EmbedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				v := make([]float32, dim)
				for j := range v {
					v[j] = float32((len(text)+j)%7) / 7.0
				}
				out[i] = v
			}
			return out, nil
		},
		CompleteFunc: func(ctx context.Context, system, prompt string) (string, error) {
			return "", nil
		},
	}
}

func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.EmbedCalls = append(m.EmbedCalls, append([]string(nil), texts...))
	m.mu.Unlock()
	return m.EmbedFunc(ctx, texts)
}

func (m *MockClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{System: system, Prompt: prompt})
	m.mu.Unlock()
	return m.CompleteFunc(ctx, system, prompt)
}

// Calls returns the number of Embed and Complete calls so far
func (m *MockClient) Calls() (embed, complete int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EmbedCalls), len(m.CompleteCalls)
}
