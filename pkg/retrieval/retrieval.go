// Package retrieval ranks vector-search hits into a stable order.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/wouteroostervld/atlas/pkg/db"
	"github.com/wouteroostervld/atlas/pkg/llm"
)

// DistancePrecision is the number of fractional digits kept before comparing distances
const DistancePrecision = 6

// Searcher is the nearest-neighbour capability of the vector store
type Searcher interface {
	SearchSimilar(ctx context.Context, repoID string, queryEmbedding []float32, k int) ([]*db.SearchResult, error)
}

// Match is a retrieved chunk as returned to callers. The distance used to
// rank it is deliberately absent.
type Match struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Text      string `json:"text"`
}

// Ranker embeds a query, searches the store and orders the hits
type Ranker struct {
	embedder llm.Embedder
	searcher Searcher
}

// New creates a Ranker
func New(embedder llm.Embedder, searcher Searcher) *Ranker {
	return &Ranker{embedder: embedder, searcher: searcher}
}

// Retrieve returns at most k matches for query in repoID, sorted by
// (rounded distance, file, start line, end line).
func (r *Ranker) Retrieve(ctx context.Context, repoID, query string, k int) ([]Match, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query embedding, got %d", len(vectors))
	}

	results, err := r.searcher.SearchSimilar(ctx, repoID, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ranked := Rank(results)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	slog.Debug("Retrieved chunks", "repo_id", repoID, "hits", len(results), "returned", len(ranked))
	return ranked, nil
}

// Rank imposes the deterministic total order on search results
func Rank(results []*db.SearchResult) []Match {
	type keyed struct {
		dist  float64
		match Match
	}

	items := make([]keyed, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		items = append(items, keyed{
			dist: RoundDistance(res.Distance),
			match: Match{
				File:      res.Chunk.FilePath,
				StartLine: res.Chunk.StartLine,
				EndLine:   res.Chunk.EndLine,
				Text:      res.Chunk.Content,
			},
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if a.match.File != b.match.File {
			return a.match.File < b.match.File
		}
		if a.match.StartLine != b.match.StartLine {
			return a.match.StartLine < b.match.StartLine
		}
		if a.match.EndLine != b.match.EndLine {
			return a.match.EndLine < b.match.EndLine
		}
		return a.match.Text < b.match.Text
	})

	matches := make([]Match, len(items))
	for i, it := range items {
		matches[i] = it.match
	}
	return matches
}

// RoundDistance rounds d to DistancePrecision fractional digits
func RoundDistance(d float64) float64 {
	scale := math.Pow10(DistancePrecision)
	return math.Round(d*scale) / scale
}
