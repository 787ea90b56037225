package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wouteroostervld/atlas/pkg/analysis"
	"github.com/wouteroostervld/atlas/pkg/answer"
	"github.com/wouteroostervld/atlas/pkg/chunker"
	"github.com/wouteroostervld/atlas/pkg/config"
	"github.com/wouteroostervld/atlas/pkg/db"
	"github.com/wouteroostervld/atlas/pkg/graphcache"
	"github.com/wouteroostervld/atlas/pkg/ingest"
	"github.com/wouteroostervld/atlas/pkg/llm/provider"
	"github.com/wouteroostervld/atlas/pkg/retrieval"
	"github.com/wouteroostervld/atlas/pkg/search"
)

// app holds the wired components shared by every command
type app struct {
	profile  *config.Profile
	db       *db.DB
	cache    *graphcache.Cache
	pipeline *ingest.Pipeline
	engine   *search.Engine
}

func loadProfile() (*config.Profile, *config.Loader, error) {
	config.LoadEnvFiles(".")
	loader := config.NewDefaultLoader()
	profile, err := loader.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return profile, loader, nil
}

func openDB(profile *config.Profile) (*db.DB, error) {
	if err := os.MkdirAll(profile.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	database, err := db.Open(db.Config{
		Path:         filepath.Join(profile.DataDir, "atlas.db"),
		EmbeddingDim: profile.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

func newApp(ctx context.Context) (*app, error) {
	profile, loader, err := loadProfile()
	if err != nil {
		return nil, err
	}

	database, err := openDB(profile)
	if err != nil {
		return nil, err
	}

	checkEmbedder(database, profile)

	a, err := wire(ctx, profile, loader, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

// checkEmbedder records which embedding model fills the index and warns when
// the configured one differs, since vectors from two models do not compare.
func checkEmbedder(database *db.DB, profile *config.Profile) {
	current := profile.Embedding.Provider + "/" + profile.Embedding.Model
	stored, err := database.GetMeta(db.MetaKeyEmbedder)
	switch {
	case errors.Is(err, db.ErrNotFound):
		if err := database.SetMeta(db.MetaKeyEmbedder, current); err != nil {
			slog.Warn("Failed to record embedder", "error", err)
		}
	case err != nil:
		slog.Warn("Failed to read embedder", "error", err)
	case stored != current:
		slog.Warn("Embedding model changed; re-ingest repositories with --force",
			"indexed_with", stored, "configured", current)
	}
}

func wire(ctx context.Context, profile *config.Profile, loader *config.Loader, database *db.DB) (*app, error) {
	var backend graphcache.Backend
	switch profile.Cache.Backend {
	case "disk":
		disk, err := graphcache.NewDiskBackend(filepath.Join(profile.DataDir, "graph_cache"), profile.Cache.Compress)
		if err != nil {
			return nil, err
		}
		backend = disk
	default:
		backend = graphcache.NewSQLiteBackend(database)
	}
	cache, err := graphcache.New(backend, profile.Cache.MemoryEntries)
	if err != nil {
		return nil, err
	}

	embedder, err := provider.NewEmbedder(ctx, profile.Embedding)
	if err != nil {
		return nil, err
	}
	completer, err := provider.NewCompleter(ctx, profile.LLM)
	if err != nil {
		return nil, err
	}

	analyzer := analysis.New(completer, analysis.Config{
		MaxLines:            profile.Analysis.MaxLines,
		BatchSize:           profile.Analysis.BatchSize,
		ImportanceThreshold: profile.Analysis.ImportanceThreshold,
		FallbackTopN:        profile.Analysis.FallbackTopN,
	})

	pipeline := ingest.New(ingest.Config{
		ReposDir:         filepath.Join(profile.DataDir, "repos"),
		Chunking:         chunker.Config{WindowSize: profile.ChunkSize, Overlap: profile.ChunkOverlap},
		Scan:             profile.Scan,
		EmbedBatchSize:   profile.Embedding.BatchSize,
		EmbedConcurrency: profile.Embedding.Concurrency,
	}, ingest.Deps{
		Store:    database,
		Embedder: embedder,
		Analyzer: analyzer,
		Cache:    cache,
		Local:    loader.LoadLocal,
	})

	engine := search.New(search.Config{TopK: profile.TopK},
		retrieval.New(embedder, database),
		answer.NewComposer(completer),
		database, cache, pipeline)

	slog.Debug("Atlas initialized",
		"data_dir", profile.DataDir,
		"embedding", profile.Embedding.Provider,
		"llm", profile.LLM.Provider,
		"cache_backend", profile.Cache.Backend)

	return &app{profile: profile, db: database, cache: cache, pipeline: pipeline, engine: engine}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
