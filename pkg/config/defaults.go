package config

import (
	"errors"
	"fmt"
	"time"
)

// LocalConfigName is the per-repository config file looked up at the snapshot root
const LocalConfigName = ".atlas.yaml"

// ErrNoActiveProfile is returned when the active profile is missing
var ErrNoActiveProfile = errors.New("active profile not found")

// DefaultSkipDirs are never descended into
var DefaultSkipDirs = []string{
	"node_modules", ".git", "build", "dist", "__pycache__",
	".venv", "venv", ".next", ".nuxt", "vendor", "target",
}

// DefaultExtensions are the file types treated as source
var DefaultExtensions = []string{
	".py", ".js", ".jsx", ".ts", ".tsx", ".go", ".rs", ".java", ".rb",
	".c", ".cpp", ".h", ".hpp", ".cs", ".swift", ".kt", ".scala",
	".vue", ".svelte", ".html", ".css", ".scss", ".sql", ".sh",
	".yaml", ".yml", ".toml", ".json", ".md", ".txt",
}

// DefaultProfile returns a fully populated profile
func DefaultProfile() *Profile {
	p := &Profile{}
	ApplyDefaults(p)
	return p
}

// DefaultGlobalConfig has a single empty profile. Defaults are filled in
// after environment overrides so provider-specific models follow the env.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Version:       "1",
		ActiveProfile: "default",
		Profiles:      map[string]*Profile{"default": {}},
	}
}

// ApplyDefaults fills every zero field of p
func ApplyDefaults(p *Profile) {
	if p.DataDir == "" {
		p.DataDir = "~/.atlas"
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = 80
	}
	if p.ChunkOverlap == 0 {
		p.ChunkOverlap = 10
	}
	if p.TopK == 0 {
		p.TopK = 8
	}

	if p.Embedding.Provider == "" {
		p.Embedding.Provider = "openai"
	}
	if p.Embedding.Model == "" {
		p.Embedding.Model = defaultEmbeddingModel(p.Embedding.Provider)
	}
	if p.Embedding.Dimension == 0 {
		p.Embedding.Dimension = defaultEmbeddingDim(p.Embedding.Provider)
	}
	if p.Embedding.BatchSize == 0 {
		p.Embedding.BatchSize = 100
	}
	if p.Embedding.Concurrency == 0 {
		p.Embedding.Concurrency = 1
	}

	if p.LLM.Provider == "" {
		p.LLM.Provider = "openai"
	}
	if p.LLM.Model == "" {
		p.LLM.Model = defaultLLMModel(p.LLM.Provider)
	}
	if p.LLM.Timeout == 0 {
		p.LLM.Timeout = 120 * time.Second
	}
	if p.LLM.MaxTokens == 0 {
		p.LLM.MaxTokens = 2048
	}

	if p.Analysis.MaxLines == 0 {
		p.Analysis.MaxLines = 200
	}
	if p.Analysis.BatchSize == 0 {
		p.Analysis.BatchSize = 8
	}
	if p.Analysis.ImportanceThreshold == 0 {
		p.Analysis.ImportanceThreshold = 6
	}
	if p.Analysis.FallbackTopN == 0 {
		p.Analysis.FallbackTopN = 10
	}

	if p.Cache.Backend == "" {
		p.Cache.Backend = "sqlite"
	}
	if p.Cache.MemoryEntries == 0 {
		p.Cache.MemoryEntries = 128
	}

	if p.Server.Addr == "" {
		p.Server.Addr = "127.0.0.1:8000"
	}

	if p.Scan.Exclude == nil {
		p.Scan.Exclude = append([]string{}, DefaultSkipDirs...)
	}
	if p.Scan.Extensions == nil {
		p.Scan.Extensions = append([]string{}, DefaultExtensions...)
	}
}

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case "ollama":
		return "nomic-embed-text"
	case "gemini":
		return "text-embedding-004"
	default:
		return "text-embedding-3-small"
	}
}

func defaultEmbeddingDim(provider string) int {
	switch provider {
	case "ollama", "gemini":
		return 768
	default:
		return 1536
	}
}

func defaultLLMModel(provider string) string {
	switch provider {
	case "ollama":
		return "llama3.1"
	case "gemini":
		return "gemini-2.5-flash"
	default:
		return "gpt-4o-mini"
	}
}

// Validate rejects settings the pipeline cannot run with
func (p *Profile) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", p.ChunkSize)
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", p.ChunkOverlap)
	}
	if p.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", p.TopK)
	}
	if p.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", p.Embedding.Dimension)
	}
	for _, name := range []string{p.Embedding.Provider, p.LLM.Provider} {
		switch name {
		case "openai", "ollama", "gemini":
		default:
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	switch p.Cache.Backend {
	case "sqlite", "disk":
	default:
		return fmt.Errorf("unknown cache backend %q", p.Cache.Backend)
	}
	if p.Analysis.ImportanceThreshold < 0 || p.Analysis.ImportanceThreshold > 10 {
		return fmt.Errorf("analysis.importance_threshold must be in [0, 10], got %d", p.Analysis.ImportanceThreshold)
	}
	return nil
}
