// Package db is the durable store: repository records, chunk text, the
// sqlite-vec similarity index and serialized graph documents.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a repository or document does not exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch means the index was built for another embedding size
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

var registerVec sync.Once

// DB is a sqlite-backed Database
type DB struct {
	conn         *sql.DB
	path         string
	embeddingDim int
	vecEnabled   bool
}

// Config holds database configuration
type Config struct {
	Path         string // Database file path
	EmbeddingDim int    // Vector size of the similarity index
	SkipVecTable bool   // No similarity index; for tests without sqlite-vec
}

func (c Config) validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDim)
	}
	return nil
}

// Open opens the store at cfg.Path, creating the file and schema on first use.
// Reopening with a different embedding dimension fails with ErrDimensionMismatch.
func Open(cfg Config) (*DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	_, statErr := os.Stat(cfg.Path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	registerVec.Do(sqlite_vec.Auto)

	conn, err := sql.Open("sqlite3", "file:"+cfg.Path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn, path: cfg.Path, embeddingDim: cfg.EmbeddingDim, vecEnabled: !cfg.SkipVecTable}
	if err := db.migrate(fresh); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := os.Chmod(cfg.Path, 0600); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set database permissions: %w", err)
	}

	slog.Debug("Database opened", "path", cfg.Path, "new", fresh, "dimension", cfg.EmbeddingDim, "vec", db.vecEnabled)
	return db, nil
}

func (db *DB) migrate(fresh bool) error {
	for _, pragma := range []string{EnableWALMode, SetWALCheckpoint, EnableForeignKeys} {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	stmts := []string{CreateMetaTable, CreateReposTable, CreateRepoChunksTable, CreateRepoChunksRepoIndex, CreateGraphCacheTable}
	if db.vecEnabled {
		stmts = append(stmts, fmt.Sprintf(CreateVecChunksTableTemplate, db.embeddingDim))
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	dim := strconv.Itoa(db.embeddingDim)
	if fresh {
		seed := [][2]string{
			{MetaKeySchemaVersion, SchemaVersion},
			{MetaKeyCreatedAt, time.Now().UTC().Format(time.RFC3339)},
			{MetaKeyEmbeddingDim, dim},
		}
		for _, kv := range seed {
			if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", kv[0], kv[1]); err != nil {
				return fmt.Errorf("failed to insert meta %s: %w", kv[0], err)
			}
		}
	} else {
		var stored string
		switch err := tx.QueryRow("SELECT value FROM meta WHERE key = ?", MetaKeyEmbeddingDim).Scan(&stored); {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read embedding dimension: %w", err)
		case stored != dim:
			return fmt.Errorf("%w: database has %s, config has %d", ErrDimensionMismatch, stored, db.embeddingDim)
		}
	}

	return tx.Commit()
}

// Close checkpoints the WAL and closes the connection. Safe to call twice.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("Failed to checkpoint WAL", "error", err)
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

func (db *DB) Path() string      { return db.path }
func (db *DB) EmbeddingDim() int { return db.embeddingDim }

// GetMeta returns a metadata value or ErrNotFound
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("meta key %s: %w", key, ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta inserts or overwrites a metadata value
func (db *DB) SetMeta(key, value string) error {
	if _, err := db.conn.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	); err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

// HealthCheck verifies connectivity, the schema version and, when the
// similarity index is enabled, that sqlite-vec is loaded.
func (db *DB) HealthCheck() error {
	if db.conn == nil {
		return fmt.Errorf("database is closed")
	}
	if err := db.conn.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	version, err := db.GetMeta(MetaKeySchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %s, got %s", SchemaVersion, version)
	}

	if db.vecEnabled {
		var vecVersion string
		if err := db.conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
			return fmt.Errorf("sqlite-vec unavailable: %w", err)
		}
	}
	return nil
}
