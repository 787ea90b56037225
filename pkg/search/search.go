// Package search answers questions about ingested repositories and serves
// the graph, source and onboarding views.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wouteroostervld/atlas/pkg/analysis"
	"github.com/wouteroostervld/atlas/pkg/answer"
	"github.com/wouteroostervld/atlas/pkg/chunker"
	"github.com/wouteroostervld/atlas/pkg/config"
	"github.com/wouteroostervld/atlas/pkg/db"
	"github.com/wouteroostervld/atlas/pkg/determinism"
	"github.com/wouteroostervld/atlas/pkg/graphcache"
	"github.com/wouteroostervld/atlas/pkg/importgraph"
	"github.com/wouteroostervld/atlas/pkg/retrieval"
)

var (
	ErrRepoNotFound  = errors.New("repository not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrInvalidPath   = errors.New("invalid path")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Retriever returns ranked chunks for a question
type Retriever interface {
	Retrieve(ctx context.Context, repoID, query string, k int) ([]retrieval.Match, error)
}

// Composer answers a question over ranked chunks
type Composer interface {
	Compose(ctx context.Context, question string, chunks []retrieval.Match) (*answer.Answer, error)
}

// Repos looks up ingested repositories
type Repos interface {
	GetRepo(ctx context.Context, repoID string) (*db.Repo, error)
}

// GraphCache reads graph entries
type GraphCache interface {
	Get(ctx context.Context, repoID string) (*graphcache.Entry, error)
}

// GraphBuilder recomputes a missing graph from a clone still on disk
type GraphBuilder interface {
	RebuildGraph(ctx context.Context, repoID, root string) (*graphcache.Entry, error)
	CloneDir(repoID string) string
}

// Config holds engine settings
type Config struct {
	TopK int
}

// Engine serves queries against ingested repositories
type Engine struct {
	retriever Retriever
	composer  Composer
	repos     Repos
	cache     GraphCache
	builder   GraphBuilder
	topK      int
}

// New creates an engine
func New(cfg Config, retriever Retriever, composer Composer, repos Repos, cache GraphCache, builder GraphBuilder) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	return &Engine{
		retriever: retriever,
		composer:  composer,
		repos:     repos,
		cache:     cache,
		builder:   builder,
		topK:      cfg.TopK,
	}
}

// Ask retrieves the best chunks for question and composes a cited answer.
// No matching chunks yields the canned "no relevant code" answer.
func (e *Engine) Ask(ctx context.Context, repoID, question string) (*answer.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if _, err := e.repos.GetRepo(ctx, repoID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, repoID)
		}
		return nil, err
	}

	matches, err := e.retriever.Retrieve(ctx, repoID, question, e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	ans, err := e.composer.Compose(ctx, question, matches)
	if err != nil {
		return nil, err
	}

	if unsupported := answer.Unsupported(ans.Citations, ans.Chunks); len(unsupported) > 0 {
		slog.Debug("Answer cites code outside the retrieved chunks",
			"repo_id", repoID, "citations", len(ans.Citations), "unsupported", len(unsupported))
	}
	return ans, nil
}

// CheckDeterminism asks the same question runs times and compares the outputs
func (e *Engine) CheckDeterminism(ctx context.Context, repoID, question string, runs, tolerance int) (determinism.Report, error) {
	if runs < 2 {
		runs = 2
	}
	outputs := make([]determinism.Output, 0, runs)
	for i := range runs {
		ans, err := e.Ask(ctx, repoID, question)
		if err != nil {
			return determinism.Report{}, fmt.Errorf("run %d: %w", i+1, err)
		}
		outputs = append(outputs, determinism.FromAnswer(ans))
	}

	report := determinism.ValidateRepeated(outputs, tolerance)
	slog.Info("Determinism check complete", "repo_id", repoID, "runs", runs,
		"deterministic", report.Deterministic, "distinct_outputs", report.DistinctOutputs)
	return report, nil
}

// Node is a file in the graph view
type Node struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Extension string `json:"extension"`
}

// GraphView is the import graph of a repository
type GraphView struct {
	Nodes []Node             `json:"nodes"`
	Edges []importgraph.Edge `json:"edges"`
}

// Graph returns file nodes and import edges. When no entry is cached but the
// clone is still on disk the graph is rebuilt from it.
func (e *Engine) Graph(ctx context.Context, repoID string) (*GraphView, error) {
	entry, err := e.entry(ctx, repoID)
	if err != nil {
		return nil, err
	}

	view := &GraphView{Nodes: make([]Node, 0, len(entry.Files)), Edges: entry.Edges}
	for _, f := range entry.Files {
		view.Nodes = append(view.Nodes, Node{ID: f, Label: path.Base(f), Extension: path.Ext(f)})
	}
	if view.Edges == nil {
		view.Edges = []importgraph.Edge{}
	}
	return view, nil
}

// OnboardingView is the reading path with the analyses behind it
type OnboardingView struct {
	RepoID   string                     `json:"repo_id"`
	Path     []analysis.Step            `json:"onboarding_path"`
	Analyses map[string]analysis.Record `json:"file_analyses"`
}

// Onboarding returns the stored onboarding path of a repository
func (e *Engine) Onboarding(ctx context.Context, repoID string) (*OnboardingView, error) {
	entry, err := e.entry(ctx, repoID)
	if err != nil {
		return nil, err
	}
	view := &OnboardingView{RepoID: repoID, Path: entry.OnboardingPath, Analyses: entry.Analyses}
	if view.Path == nil {
		view.Path = []analysis.Step{}
	}
	if view.Analyses == nil {
		view.Analyses = map[string]analysis.Record{}
	}
	return view, nil
}

// SourceView is a line range of a file
type SourceView struct {
	File  string   `json:"file"`
	Start int      `json:"start"`
	End   int      `json:"end"`
	Lines []string `json:"lines"`
}

// Source returns lines start..end (1-indexed, inclusive) of file. An end of
// -1 means the last line. Paths that leave the repository are rejected.
func (e *Engine) Source(ctx context.Context, repoID, file string, start, end int) (*SourceView, error) {
	root, err := e.root(ctx, repoID)
	if err != nil {
		return nil, err
	}

	if file == "" || filepath.IsAbs(file) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, file)
	}
	full := filepath.Join(root, filepath.FromSlash(file))
	if err := config.ValidatePathSecurity(full, []string{root}); err != nil || full == filepath.Clean(root) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, file)
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, file)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	lines := chunker.SplitLines(string(data))
	if start < 1 {
		start = 1
	}
	if end < 0 || end > len(lines) {
		end = len(lines)
	}

	view := &SourceView{File: file, Start: start, End: end, Lines: []string{}}
	if start <= end {
		view.Lines = lines[start-1 : end]
	}
	return view, nil
}

// entry loads the cached graph, rebuilding it from a surviving clone
func (e *Engine) entry(ctx context.Context, repoID string) (*graphcache.Entry, error) {
	if !validRepoID(repoID) {
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, repoID)
	}
	entry, err := e.cache.Get(ctx, repoID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, graphcache.ErrNotFound) {
		return nil, err
	}

	dir := e.builder.CloneDir(repoID)
	if !isDir(dir) {
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, repoID)
	}
	return e.builder.RebuildGraph(ctx, repoID, dir)
}

// root is the snapshot location of a repository
func (e *Engine) root(ctx context.Context, repoID string) (string, error) {
	if !validRepoID(repoID) {
		return "", fmt.Errorf("%w: %s", ErrRepoNotFound, repoID)
	}
	entry, err := e.cache.Get(ctx, repoID)
	if err != nil && !errors.Is(err, graphcache.ErrNotFound) {
		return "", err
	}
	root := e.builder.CloneDir(repoID)
	if entry != nil {
		root = entry.Root
	}
	if !isDir(root) {
		return "", fmt.Errorf("%w: %s", ErrRepoNotFound, repoID)
	}
	return root, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// validRepoID rejects ids that would resolve outside the clone directory
func validRepoID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
