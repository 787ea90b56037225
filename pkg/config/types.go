package config

import "time"

// GlobalConfig represents the main configuration file at ~/.atlas/config.yaml
type GlobalConfig struct {
	Version       string              `yaml:"version"`
	ActiveProfile string              `yaml:"active_profile"`
	Profiles      map[string]*Profile `yaml:"profiles"`
}

// Profile represents a single configuration profile with all settings
type Profile struct {
	DataDir string `yaml:"data_dir"` // Database, clones and graph cache live here

	// Chunking and retrieval
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Scan      ScanConfig      `yaml:"scan"`
}

// EmbeddingConfig selects the embedding backend
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "openai", "ollama" or "gemini"
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// LLMConfig selects the completion backend
type LLMConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// AnalysisConfig tunes file importance scoring and the onboarding path
type AnalysisConfig struct {
	MaxLines            int `yaml:"max_lines"`            // Lines of each file sent to the model
	BatchSize           int `yaml:"batch_size"`           // Files per request
	ImportanceThreshold int `yaml:"importance_threshold"` // Minimum score for the reading path
	FallbackTopN        int `yaml:"fallback_top_n"`       // Used when nothing reaches the threshold
}

// CacheConfig configures the graph cache
type CacheConfig struct {
	Backend       string `yaml:"backend"` // "sqlite" or "disk"
	MemoryEntries int    `yaml:"memory_entries"`
	Compress      bool   `yaml:"compress"` // zstd for the disk backend
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins"`   // CORS origins; "*" allows any
	AllowLocalPaths bool     `yaml:"allow_local_paths"` // permit ingesting server-local directories over HTTP
}

// ScanConfig controls which files of a snapshot are ingested
type ScanConfig struct {
	Exclude          []string `yaml:"exclude"`    // Directory names to skip
	Extensions       []string `yaml:"extensions"` // Allowed file extensions
	Blacklist        []string `yaml:"blacklist"`  // Reject patterns on the relative path (applied first)
	Whitelist        []string `yaml:"whitelist"`  // Exception patterns (override blacklist)
	RespectGitignore *bool    `yaml:"respect_gitignore,omitempty"`
}

// GitignoreEnabled reports whether .gitignore files should be honored (default true)
func (s ScanConfig) GitignoreEnabled() bool {
	return s.RespectGitignore == nil || *s.RespectGitignore
}

// LocalConfig represents a repository-local .atlas.yaml file.
// It can only add exclusions; it never widens what is ingested.
type LocalConfig struct {
	Exclude   []string `yaml:"exclude,omitempty"`
	Blacklist []string `yaml:"blacklist,omitempty"`
}
