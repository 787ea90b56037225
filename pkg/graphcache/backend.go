package graphcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/wouteroostervld/atlas/pkg/db"
)

// DocumentStore is the subset of the database holding graph documents
type DocumentStore interface {
	SaveGraphDocument(ctx context.Context, repoID string, document []byte) error
	LoadGraphDocument(ctx context.Context, repoID string) ([]byte, error)
	DeleteGraphDocument(ctx context.Context, repoID string) error
}

// SQLiteBackend keeps documents in the graph_cache table
type SQLiteBackend struct {
	store DocumentStore
}

// NewSQLiteBackend creates a backend over store
func NewSQLiteBackend(store DocumentStore) *SQLiteBackend {
	return &SQLiteBackend{store: store}
}

func (b *SQLiteBackend) Load(ctx context.Context, repoID string) ([]byte, error) {
	doc, err := b.store.LoadGraphDocument(ctx, repoID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, repoID)
	}
	return doc, err
}

func (b *SQLiteBackend) Save(ctx context.Context, repoID string, document []byte) error {
	return b.store.SaveGraphDocument(ctx, repoID, document)
}

func (b *SQLiteBackend) Delete(ctx context.Context, repoID string) error {
	return b.store.DeleteGraphDocument(ctx, repoID)
}

const (
	plainExt      = ".json"
	compressedExt = ".json.zst"
)

// DiskBackend writes one JSON file per repository, optionally zstd-compressed.
// Files are replaced atomically through a temp file and rename.
type DiskBackend struct {
	dir      string
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewDiskBackend creates the directory if needed
func NewDiskBackend(dir string, compress bool) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create graph cache directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &DiskBackend{dir: dir, compress: compress, encoder: enc, decoder: dec}, nil
}

// Load reads the document in the configured format, falling back to the
// other one so toggling compression does not orphan existing entries.
func (b *DiskBackend) Load(ctx context.Context, repoID string) ([]byte, error) {
	if !validID(repoID) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, repoID)
	}

	exts := []string{plainExt, compressedExt}
	if b.compress {
		exts = []string{compressedExt, plainExt}
	}
	for _, ext := range exts {
		data, err := os.ReadFile(filepath.Join(b.dir, repoID+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read graph cache file: %w", err)
		}
		if ext == compressedExt {
			if data, err = b.decoder.DecodeAll(data, nil); err != nil {
				return nil, fmt.Errorf("failed to decompress graph cache file: %w", err)
			}
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, repoID)
}

func (b *DiskBackend) Save(ctx context.Context, repoID string, document []byte) error {
	if !validID(repoID) {
		return fmt.Errorf("invalid repository id %q", repoID)
	}

	ext, stale := plainExt, compressedExt
	if b.compress {
		ext, stale = compressedExt, plainExt
		document = b.encoder.EncodeAll(document, nil)
	}

	tmp, err := os.CreateTemp(b.dir, repoID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(document); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write graph cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close graph cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, repoID+ext)); err != nil {
		return fmt.Errorf("failed to replace graph cache file: %w", err)
	}

	// The other format would otherwise shadow this write after a config change
	os.Remove(filepath.Join(b.dir, repoID+stale))
	return nil
}

func (b *DiskBackend) Delete(ctx context.Context, repoID string) error {
	if !validID(repoID) {
		return nil
	}
	for _, ext := range []string{plainExt, compressedExt} {
		if err := os.Remove(filepath.Join(b.dir, repoID+ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete graph cache file: %w", err)
		}
	}
	return nil
}

// validID rejects ids that could escape the cache directory
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
