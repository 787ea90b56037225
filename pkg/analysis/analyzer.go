package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"strings"

	"github.com/wouteroostervld/atlas/pkg/chunker"
	"github.com/wouteroostervld/atlas/pkg/llm"
)

const analysisSystemPrompt = `You are a senior engineer preparing a codebase for a new team member. For every file you are given, assess how important it is for understanding the project.

Importance rubric (integer 0-10):
- 9-10: entry points and top-level wiring (main, server or app setup, CLI roots)
- 7-8: core domain logic and modules imported by many others
- 4-6: supporting features and shared helpers
- 1-3: configuration, small utilities, tests, fixtures
- 0: generated, vendored or trivial files

Respond with a JSON array only, one object per file, using exactly these fields:
[{"file": "<path as given>", "importance": <0-10>, "summary": "<one sentence>", "responsibilities": ["..."], "key_exports": ["..."], "onboarding_reason": "<one line: why a newcomer should read it>"}]`

// ContentProvider returns the text of a repository file
type ContentProvider interface {
	Content(file string) (string, error)
}

// Config bounds the size of analysis requests
type Config struct {
	MaxLines            int // Lines of each file included in the prompt
	BatchSize           int // Files per model request
	ImportanceThreshold int // Minimum score for the onboarding path
	FallbackTopN        int // Path length when no file reaches the threshold
}

// DefaultConfig returns the standard limits
func DefaultConfig() Config {
	return Config{MaxLines: 200, BatchSize: 8, ImportanceThreshold: 6, FallbackTopN: 10}
}

// Analyzer scores files and builds onboarding paths with a language model
type Analyzer struct {
	completer llm.Completer
	cfg       Config
}

// New creates an Analyzer. Zero config fields take their defaults.
func New(completer llm.Completer, cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = def.MaxLines
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FallbackTopN <= 0 {
		cfg.FallbackTopN = def.FallbackTopN
	}
	return &Analyzer{completer: completer, cfg: cfg}
}

type batchFile struct {
	path    string
	content string
}

// Analyze returns a record for every file in files. Model failures and
// unparseable responses degrade to DefaultRecord per batch; only context
// cancellation is returned as an error.
func (a *Analyzer) Analyze(ctx context.Context, files []string, provider ContentProvider) (map[string]Record, error) {
	records := make(map[string]Record, len(files))

	var pending []batchFile
	for _, f := range files {
		content, err := provider.Content(f)
		if err != nil {
			slog.Debug("Skipping unreadable file", "file", f, "error", err)
			records[f] = DefaultRecord()
			continue
		}
		pending = append(pending, batchFile{path: f, content: headLines(content, a.cfg.MaxLines)})
	}

	for start := 0; start < len(pending); start += a.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := pending[start:min(start+a.cfg.BatchSize, len(pending))]
		res := a.analyzeBatch(ctx, batch)
		if res.Degraded {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slog.Warn("Batch analysis degraded to defaults", "files", len(batch), "error", res.Cause)
		}
		maps.Copy(records, res.Records)
	}

	slog.Debug("Analysis complete", "files", len(records), "batches", (len(pending)+a.cfg.BatchSize-1)/a.cfg.BatchSize)
	return records, nil
}

func (a *Analyzer) analyzeBatch(ctx context.Context, batch []batchFile) BatchResult {
	paths := make([]string, len(batch))
	var sb strings.Builder
	for i, f := range batch {
		paths[i] = f.path
		fmt.Fprintf(&sb, "=== FILE: %s ===\n%s\n\n", f.path, f.content)
	}

	response, err := a.completer.Complete(ctx, analysisSystemPrompt, sb.String())
	if err != nil {
		return Degraded(paths, fmt.Errorf("completion failed: %w", err))
	}
	return ParseBatch(paths, response)
}

// BatchResult is the outcome of one analysis request: either the parsed
// records or, when Degraded, default records for the whole batch. Records
// always holds exactly one entry per requested file.
type BatchResult struct {
	Records  map[string]Record
	Degraded bool
	Cause    error
}

// Degraded assigns the default record to every file
func Degraded(files []string, cause error) BatchResult {
	records := make(map[string]Record, len(files))
	for _, f := range files {
		records[f] = DefaultRecord()
	}
	return BatchResult{Records: records, Degraded: true, Cause: cause}
}

type rawRecord struct {
	File             string   `json:"file"`
	Importance       float64  `json:"importance"`
	Summary          string   `json:"summary"`
	Responsibilities []string `json:"responsibilities"`
	KeyExports       []string `json:"key_exports"`
	OnboardingReason string   `json:"onboarding_reason"`
}

func (r rawRecord) record() Record {
	return Record{
		Importance:       int(math.Round(r.Importance)),
		Summary:          r.Summary,
		Responsibilities: r.Responsibilities,
		KeyExports:       r.KeyExports,
		OnboardingReason: r.OnboardingReason,
	}.normalize()
}

// ParseBatch decodes a model response for files. It accepts a JSON array of
// records carrying a "file" field, or an object keyed by file path, either
// optionally wrapped in a markdown code fence. Files the response omits get
// the default record; files it invents are dropped.
func ParseBatch(files []string, response string) BatchResult {
	body := llm.StripMarkdownCodeFence(response)

	parsed := make(map[string]Record)
	var list []rawRecord
	if err := json.Unmarshal([]byte(body), &list); err == nil {
		for _, r := range list {
			parsed[r.File] = r.record()
		}
	} else {
		var byPath map[string]rawRecord
		if err2 := json.Unmarshal([]byte(body), &byPath); err2 != nil {
			return Degraded(files, fmt.Errorf("unparseable analysis response: %w", err))
		}
		for path, r := range byPath {
			parsed[path] = r.record()
		}
	}

	records := make(map[string]Record, len(files))
	missing := 0
	for _, f := range files {
		if r, ok := parsed[f]; ok {
			records[f] = r
			continue
		}
		records[f] = DefaultRecord()
		missing++
	}
	if missing > 0 {
		slog.Debug("Analysis response omitted files", "missing", missing, "requested", len(files))
	}
	return BatchResult{Records: records}
}

func headLines(content string, n int) string {
	lines := chunker.SplitLines(content)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "")
}
