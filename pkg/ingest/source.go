package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RepoID derives the stable repository identifier from a source reference
func RepoID(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])[:12]
}

// Source is a resolved ingest target
type Source struct {
	Ref   string // what the caller asked for
	ID    string
	Root  string // where the files are (or will be cloned to)
	Local bool   // Root is an existing tree that is read in place
}

// ResolveSource maps a URL or local directory to its id and snapshot root.
// Local directories are identified by their absolute path; anything else
// is cloned under reposDir.
func ResolveSource(ref, reposDir string) (Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Source{}, fmt.Errorf("empty source")
	}

	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return Source{}, fmt.Errorf("failed to resolve path: %w", err)
		}
		return Source{Ref: ref, ID: RepoID(abs), Root: abs, Local: true}, nil
	}

	id := RepoID(ref)
	return Source{Ref: ref, ID: id, Root: filepath.Join(reposDir, id)}, nil
}

// Cloner materializes a remote repository into a directory
type Cloner interface {
	Clone(ctx context.Context, url, dest string) error
}

// GitCloner shells out to git for a shallow clone
type GitCloner struct {
	Binary string // defaults to "git"
}

// Clone replaces dest with a depth-1 clone of url
func (g GitCloner) Clone(ctx context.Context, url, dest string) error {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to remove previous clone: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "clone", "--depth", "1", "--", url, dest)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
