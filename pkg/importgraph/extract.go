package importgraph

import (
	"log/slog"
)

// Edge is a directed intra-repository import
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ContentProvider returns the content of a repository-relative file
type ContentProvider interface {
	Content(file string) (string, error)
}

// ContentFunc adapts a function to ContentProvider
type ContentFunc func(file string) (string, error)

func (f ContentFunc) Content(file string) (string, error) { return f(file) }

// Result holds the extracted edges in discovery order
type Result struct {
	Edges      []Edge
	Unresolved int // Specifiers that matched a pattern but no repository file
}

// Extractor resolves import statements into edges using a pattern table
type Extractor struct {
	table Table
}

// New creates an extractor; a nil table uses DefaultTable
func New(table Table) *Extractor {
	if table == nil {
		table = DefaultTable()
	}
	return &Extractor{table: table}
}

// Extract scans files in order and returns deduplicated edges.
// Unreadable files and unresolvable specifiers are skipped.
func (e *Extractor) Extract(files []string, provider ContentProvider) Result {
	known := make(map[string]struct{}, len(files))
	for _, f := range files {
		known[f] = struct{}{}
	}

	var res Result
	seen := make(map[Edge]struct{})
	for _, file := range files {
		patterns := e.table.PatternsFor(file)
		if len(patterns) == 0 {
			continue
		}

		content, err := provider.Content(file)
		if err != nil {
			slog.Debug("Skipping unreadable file", "file", file, "error", err)
			continue
		}

		for _, p := range patterns {
			for _, spec := range p.Specifiers(content) {
				target, ok := Resolve(file, spec, known)
				if !ok {
					res.Unresolved++
					continue
				}
				if target == file {
					continue
				}
				edge := Edge{Source: file, Target: target}
				if _, dup := seen[edge]; dup {
					continue
				}
				seen[edge] = struct{}{}
				res.Edges = append(res.Edges, edge)
			}
		}
	}

	slog.Debug("Import extraction complete", "files", len(files), "edges", len(res.Edges), "unresolved", res.Unresolved)
	return res
}
