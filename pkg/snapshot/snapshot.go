package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/wouteroostervld/atlas/pkg/filter"
)

// Options controls the walk
type Options struct {
	Filter    *filter.Filter // nil admits every regular file
	Gitignore bool           // honor .gitignore files found in the tree
}

// Snapshot is the immutable file list of a materialized repository
type Snapshot struct {
	Root  string
	Files []string // repository-relative, slash separated, sorted
}

// Walk lists the source files under root
func Walk(root string, opts Options) (*Snapshot, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	ignores := make(map[string]*ignore.GitIgnore)
	var files []string

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Debug("Skipping unreadable path", "path", p, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				loadIgnore(ignores, abs, rel, opts.Gitignore)
				return nil
			}
			if opts.Filter != nil && opts.Filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			if ignored(ignores, rel+"/") {
				return filepath.SkipDir
			}
			loadIgnore(ignores, abs, rel, opts.Gitignore)
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if ignored(ignores, rel) {
			return nil
		}
		if opts.Filter != nil && !opts.Filter.AllowFile(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
	}

	sort.Strings(files)
	slog.Debug("Snapshot walked", "root", abs, "files", len(files))
	return &Snapshot{Root: abs, Files: files}, nil
}

func loadIgnore(ignores map[string]*ignore.GitIgnore, root, rel string, enabled bool) {
	if !enabled {
		return
	}
	p := filepath.Join(root, filepath.FromSlash(rel), ".gitignore")
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Failed to parse .gitignore", "path", p, "error", err)
		}
		return
	}
	ignores[rel] = gi
}

// ignored checks rel against the .gitignore of every ancestor directory
func ignored(ignores map[string]*ignore.GitIgnore, rel string) bool {
	if len(ignores) == 0 {
		return false
	}
	dir := path.Dir(rel)
	if rel[len(rel)-1] == '/' {
		dir = path.Dir(rel[:len(rel)-1])
	}
	for {
		if gi, ok := ignores[dir]; ok {
			sub := rel
			if dir != "." {
				sub = rel[len(dir)+1:]
			}
			if gi.MatchesPath(sub) {
				return true
			}
		}
		if dir == "." {
			return false
		}
		dir = path.Dir(dir)
	}
}

// Path returns the absolute location of a repository-relative file
func (s *Snapshot) Path(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// Content reads a file of the snapshot. Paths outside the file list are
// reported as not existing.
func (s *Snapshot) Content(rel string) (string, error) {
	if !s.Contains(rel) {
		return "", fmt.Errorf("%s: %w", rel, fs.ErrNotExist)
	}
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Contains reports whether rel is part of the snapshot
func (s *Snapshot) Contains(rel string) bool {
	i := sort.SearchStrings(s.Files, rel)
	return i < len(s.Files) && s.Files[i] == rel
}
