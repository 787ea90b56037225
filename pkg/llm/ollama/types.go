package ollama

import "time"

// EmbedRequest is the batch request for /api/embed
type EmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbedResponse carries one embedding per input, in input order
type EmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Options pins sampling so repeated completions stay reproducible
type Options struct {
	Temperature float64 `json:"temperature"`
	Seed        int     `json:"seed"`
}

// GenerateRequest represents a request to generate text
type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	System  string  `json:"system,omitempty"`
	Options Options `json:"options"`
}

// GenerateResponse represents the response from Ollama generate API
type GenerateResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Response  string    `json:"response"`
	Done      bool      `json:"done"`
}
