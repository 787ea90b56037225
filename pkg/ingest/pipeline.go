// Package ingest runs the staged ingest of a repository and reports progress
// as a stream of events.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/wouteroostervld/atlas/pkg/analysis"
	"github.com/wouteroostervld/atlas/pkg/chunker"
	"github.com/wouteroostervld/atlas/pkg/config"
	"github.com/wouteroostervld/atlas/pkg/db"
	"github.com/wouteroostervld/atlas/pkg/filter"
	"github.com/wouteroostervld/atlas/pkg/graphcache"
	"github.com/wouteroostervld/atlas/pkg/importgraph"
	"github.com/wouteroostervld/atlas/pkg/llm"
	"github.com/wouteroostervld/atlas/pkg/snapshot"
)

// Store is the part of the database the pipeline writes to
type Store interface {
	ReplaceRepoChunks(ctx context.Context, repoID string, chunks []db.Chunk, vectors [][]float32) error
	CountChunks(ctx context.Context, repoID string) (int, error)
	UpsertRepo(ctx context.Context, r db.Repo) error
}

// Cache holds the graph entry of each repository
type Cache interface {
	Get(ctx context.Context, repoID string) (*graphcache.Entry, error)
	Put(ctx context.Context, repoID string, e *graphcache.Entry) error
	Delete(ctx context.Context, repoID string) error
}

// Analyzer scores files and orders them into an onboarding path
type Analyzer interface {
	Analyze(ctx context.Context, files []string, provider analysis.ContentProvider) (map[string]analysis.Record, error)
	BuildPath(ctx context.Context, analyses map[string]analysis.Record, edges []importgraph.Edge) ([]analysis.Step, error)
}

// Config holds pipeline settings
type Config struct {
	ReposDir         string // Clones live in <ReposDir>/<repo_id>
	Chunking         chunker.Config
	Scan             config.ScanConfig
	EmbedBatchSize   int
	EmbedConcurrency int
}

// Deps are the collaborators of a pipeline
type Deps struct {
	Store     Store
	Embedder  llm.Embedder
	Analyzer  Analyzer
	Cache     Cache
	Cloner    Cloner                                         // defaults to GitCloner
	Local     func(root string) (*config.LocalConfig, error) // optional per-repository config
	Extractor *importgraph.Extractor                         // defaults to the built-in table
}

// Request asks for one repository to be ingested
type Request struct {
	Source string // URL or local directory
	Force  bool   // ignore a previous complete ingest
}

// Pipeline ingests repositories
type Pipeline struct {
	cfg  Config
	deps Deps
}

// New creates a pipeline
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Chunking.WindowSize == 0 {
		cfg.Chunking = chunker.DefaultConfig()
	}
	if deps.Cloner == nil {
		deps.Cloner = GitCloner{}
	}
	if deps.Extractor == nil {
		deps.Extractor = importgraph.New(nil)
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// eventBuffer holds every event a single run can emit, so the producer
// never blocks on a consumer that stopped reading.
const eventBuffer = 16

// Run starts an ingest and returns its event stream. The channel is closed
// after exactly one done or error event. Cancelling ctx ends the run with
// an error event.
func (p *Pipeline) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, eventBuffer)

	go func() {
		defer close(events)

		progress := func(step Step, format string, args ...any) {
			msg := fmt.Sprintf(format, args...)
			slog.Debug("Ingest progress", "step", step, "message", msg)
			events <- Event{Name: EventProgress, Step: step, Message: msg}
		}

		res, err := p.run(ctx, req, progress)
		if err != nil {
			slog.Error("Ingest failed", "source", req.Source, "error", err)
			events <- Event{Name: EventError, Message: err.Error()}
			return
		}
		slog.Info("Ingest complete", "repo_id", res.RepoID, "files", res.Files, "chunks", res.Chunks, "cached", res.Cached)
		events <- Event{Name: EventDone, Result: res}
	}()

	return events
}

type progressFunc func(step Step, format string, args ...any)

func (p *Pipeline) run(ctx context.Context, req Request, progress progressFunc) (*Result, error) {
	src, err := ResolveSource(req.Source, p.cfg.ReposDir)
	if err != nil {
		return nil, &StageError{Step: StepCloning, Err: err}
	}

	if !req.Force {
		if res, ok := p.cached(ctx, src.ID); ok {
			return res, nil
		}
	}

	// From here on the previous generation is invalid; a run that does not
	// finish leaves the repository without an entry.
	if err := p.deps.Cache.Delete(ctx, src.ID); err != nil {
		return nil, &StageError{Step: StepCloning, Err: err}
	}

	stage := func(step Step, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return &StageError{Step: step, Err: err}
		}
		if err := fn(); err != nil {
			return &StageError{Step: step, Err: err}
		}
		return nil
	}

	if err := stage(StepCloning, func() error {
		if src.Local {
			progress(StepCloning, "Using local tree %s", src.Root)
			return nil
		}
		progress(StepCloning, "Cloning %s", src.Ref)
		return p.deps.Cloner.Clone(ctx, src.Ref, src.Root)
	}); err != nil {
		return nil, err
	}

	var (
		snap   *snapshot.Snapshot
		chunks []chunker.Chunk
	)
	if err := stage(StepScanning, func() error {
		progress(StepScanning, "Scanning %s", src.Root)
		var err error
		if snap, err = p.Scan(src.Root); err != nil {
			return err
		}
		chunks, err = p.chunk(snap)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(StepEmbedding, func() error {
		progress(StepEmbedding, "Embedding %d chunks from %d files", len(chunks), len(snap.Files))
		return p.embed(ctx, src.ID, chunks)
	}); err != nil {
		return nil, err
	}

	var graph importgraph.Result
	if err := stage(StepGraphing, func() error {
		graph = p.deps.Extractor.Extract(snap.Files, snap)
		progress(StepGraphing, "Found %d import edges (%d unresolved imports)", len(graph.Edges), graph.Unresolved)
		return nil
	}); err != nil {
		return nil, err
	}

	var analyses map[string]analysis.Record
	if err := stage(StepAnalyzing, func() error {
		progress(StepAnalyzing, "Analyzing %d files", len(snap.Files))
		var err error
		analyses, err = p.deps.Analyzer.Analyze(ctx, snap.Files, snap)
		return err
	}); err != nil {
		return nil, err
	}

	var path []analysis.Step
	if err := stage(StepPathing, func() error {
		progress(StepPathing, "Building onboarding path")
		var err error
		if path, err = p.deps.Analyzer.BuildPath(ctx, analyses, graph.Edges); err != nil {
			return err
		}

		// The repo record goes first so a failed write leaves no cache entry.
		if err := p.deps.Store.UpsertRepo(ctx, db.Repo{
			ID:         src.ID,
			Source:     src.Ref,
			Root:       snap.Root,
			FileCount:  len(snap.Files),
			ChunkCount: len(chunks),
		}); err != nil {
			return err
		}
		return p.deps.Cache.Put(ctx, src.ID, &graphcache.Entry{
			Files:          snap.Files,
			Edges:          nonNilEdges(graph.Edges),
			Root:           snap.Root,
			Analyses:       analyses,
			OnboardingPath: path,
			Complete:       true,
		})
	}); err != nil {
		return nil, err
	}

	return &Result{RepoID: src.ID, Files: len(snap.Files), Chunks: len(chunks)}, nil
}

// cached reports the stored counts when a complete previous ingest exists
func (p *Pipeline) cached(ctx context.Context, repoID string) (*Result, bool) {
	entry, err := p.deps.Cache.Get(ctx, repoID)
	if err != nil {
		if !errors.Is(err, graphcache.ErrNotFound) {
			slog.Warn("Failed to read graph cache", "repo_id", repoID, "error", err)
		}
		return nil, false
	}
	if !entry.Complete {
		slog.Debug("Cache entry is graph-only, ingesting again", "repo_id", repoID)
		return nil, false
	}
	n, err := p.deps.Store.CountChunks(ctx, repoID)
	if err != nil || n == 0 {
		return nil, false
	}
	return &Result{RepoID: repoID, Files: len(entry.Files), Chunks: n, Cached: true}, true
}

// Scan walks root with the configured filters plus any local .atlas.yaml
func (p *Pipeline) Scan(root string) (*snapshot.Snapshot, error) {
	scan := p.cfg.Scan
	if p.deps.Local != nil {
		local, err := p.deps.Local(root)
		if err != nil {
			slog.Warn("Ignoring invalid local config", "root", root, "error", err)
		} else {
			scan = config.MergeLocal(scan, local)
		}
	}

	f := filter.New(filter.Rules{
		Exclude:    scan.Exclude,
		Extensions: scan.Extensions,
		Blacklist:  scan.Blacklist,
		Whitelist:  scan.Whitelist,
	})
	return snapshot.Walk(root, snapshot.Options{Filter: f, Gitignore: scan.GitignoreEnabled()})
}

func (p *Pipeline) chunk(snap *snapshot.Snapshot) ([]chunker.Chunk, error) {
	var all []chunker.Chunk
	for _, f := range snap.Files {
		chunks, err := chunker.SplitFile(f, snap.Path(f), p.cfg.Chunking)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	slog.Debug("Chunking complete", "files", len(snap.Files), "chunk_count", len(all))
	return all, nil
}

func (p *Pipeline) embed(ctx context.Context, repoID string, chunks []chunker.Chunk) error {
	texts := make([]string, len(chunks))
	rows := make([]db.Chunk, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		rows[i] = db.Chunk{FilePath: c.File, StartLine: c.StartLine, EndLine: c.EndLine, Content: c.Text}
	}

	vectors, err := llm.EmbedBatches(ctx, p.deps.Embedder, texts, p.cfg.EmbedBatchSize, p.cfg.EmbedConcurrency)
	if err != nil {
		return err
	}
	return p.deps.Store.ReplaceRepoChunks(ctx, repoID, rows, vectors)
}

// RebuildGraph recomputes files and edges for a tree that is still on disk
// and stores them with empty analyses and path. The entry is not Complete,
// so it never satisfies a non-forced ingest.
func (p *Pipeline) RebuildGraph(ctx context.Context, repoID, root string) (*graphcache.Entry, error) {
	snap, err := p.Scan(root)
	if err != nil {
		return nil, err
	}
	graph := p.deps.Extractor.Extract(snap.Files, snap)
	entry := &graphcache.Entry{
		Files:          snap.Files,
		Edges:          nonNilEdges(graph.Edges),
		Root:           snap.Root,
		Analyses:       map[string]analysis.Record{},
		OnboardingPath: []analysis.Step{},
	}
	if err := p.deps.Cache.Put(ctx, repoID, entry); err != nil {
		return nil, err
	}
	slog.Info("Rebuilt graph from clone", "repo_id", repoID, "files", len(snap.Files), "edges", len(graph.Edges))
	return entry, nil
}

// CloneDir is where a cloned repository is kept
func (p *Pipeline) CloneDir(repoID string) string {
	return filepath.Join(p.cfg.ReposDir, repoID)
}

func nonNilEdges(edges []importgraph.Edge) []importgraph.Edge {
	if edges == nil {
		return []importgraph.Edge{}
	}
	return edges
}
