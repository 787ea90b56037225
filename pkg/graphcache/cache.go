// Package graphcache keeps the per-repository graph, analyses and onboarding
// path in memory, mirrored to a durable backend.
package graphcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/wouteroostervld/atlas/pkg/analysis"
	"github.com/wouteroostervld/atlas/pkg/importgraph"
)

// ErrNotFound is returned when no entry exists for a repository
var ErrNotFound = errors.New("graph cache entry not found")

// DefaultMemoryEntries is the in-process capacity when none is configured
const DefaultMemoryEntries = 128

// Entry is everything computed for one ingest of a repository. Entries are
// replaced as a whole and must not be modified after Put.
type Entry struct {
	Files          []string                   `json:"files"`
	Edges          []importgraph.Edge         `json:"edges"`
	Root           string                     `json:"root"`
	Analyses       map[string]analysis.Record `json:"file_analyses"`
	OnboardingPath []analysis.Step            `json:"onboarding_path"`
	// Complete is set only by a finished ingest; rebuilt graph-only entries
	// leave it false.
	Complete bool `json:"complete"`
}

// Backend stores one encoded document per repository
type Backend interface {
	Load(ctx context.Context, repoID string) ([]byte, error) // ErrNotFound when absent
	Save(ctx context.Context, repoID string, document []byte) error
	Delete(ctx context.Context, repoID string) error
}

// Cache is a read-through, write-through cache in front of a Backend
type Cache struct {
	backend Backend
	mem     *lru.Cache[string, *Entry]
	group   singleflight.Group
	mu      sync.Mutex // orders Put/Delete against late loads
	gen     uint64     // bumped by every Put and Delete
}

// New creates a cache holding up to size entries in memory
func New(backend Backend, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	mem, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &Cache{backend: backend, mem: mem}, nil
}

// Get returns the entry for repoID. Concurrent misses share one backend load.
func (c *Cache) Get(ctx context.Context, repoID string) (*Entry, error) {
	if e, ok := c.mem.Get(repoID); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(repoID, func() (any, error) {
		if e, ok := c.mem.Get(repoID); ok {
			return e, nil
		}

		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		doc, err := c.backend.Load(ctx, repoID)
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("failed to decode graph cache entry %s: %w", repoID, err)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// Only remember what we read if no Put or Delete ran meanwhile
		if c.gen == gen {
			c.mem.Add(repoID, &e)
		}
		return &e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// Put replaces the entry for repoID. The durable copy is written first, so
// a failed write leaves the previous generation visible everywhere.
func (c *Cache) Put(ctx context.Context, repoID string, e *Entry) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode graph cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.Save(ctx, repoID, doc); err != nil {
		return fmt.Errorf("failed to persist graph cache entry: %w", err)
	}
	c.mem.Add(repoID, e)
	c.gen++
	slog.Debug("Graph cache updated", "repo_id", repoID, "files", len(e.Files), "edges", len(e.Edges), "bytes", len(doc))
	return nil
}

// Delete drops the entry from memory and the backend
func (c *Cache) Delete(ctx context.Context, repoID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Remove(repoID)
	c.gen++
	if err := c.backend.Delete(ctx, repoID); err != nil {
		return fmt.Errorf("failed to delete graph cache entry: %w", err)
	}
	return nil
}

// Len returns the number of entries held in memory
func (c *Cache) Len() int {
	return c.mem.Len()
}
