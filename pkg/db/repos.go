package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repo is the record of a completed ingest
type Repo struct {
	ID         string
	Source     string // URL or local path the snapshot came from
	Root       string // Local snapshot location
	FileCount  int
	ChunkCount int
	IngestedAt time.Time
}

func (r *Repo) Scan(rows *sql.Rows) error {
	return rows.Scan(&r.ID, &r.Source, &r.Root, &r.FileCount, &r.ChunkCount, &r.IngestedAt)
}

// UpsertRepo records or refreshes a repository
func (db *DB) UpsertRepo(ctx context.Context, r Repo) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO repos (repo_id, source, root, file_count, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(repo_id) DO UPDATE SET
			source = excluded.source,
			root = excluded.root,
			file_count = excluded.file_count,
			chunk_count = excluded.chunk_count,
			ingested_at = CURRENT_TIMESTAMP`,
		r.ID, r.Source, r.Root, r.FileCount, r.ChunkCount)
	if err != nil {
		return fmt.Errorf("failed to upsert repo: %w", err)
	}
	return nil
}

// GetRepo returns a repository by id or ErrNotFound
func (db *DB) GetRepo(ctx context.Context, repoID string) (*Repo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT repo_id, source, root, file_count, chunk_count, ingested_at
		FROM repos WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get repo: %w", err)
	}
	defer rows.Close()

	return first[Repo](rows, "repo "+repoID)
}

// ListRepos returns every ingested repository ordered by id
func (db *DB) ListRepos(ctx context.Context) ([]*Repo, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT repo_id, source, root, file_count, chunk_count, ingested_at
		FROM repos ORDER BY repo_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}
	defer rows.Close()

	return collect[Repo](rows)
}

// DeleteRepo drops a repository's record and its chunks
func (db *DB) DeleteRepo(ctx context.Context, repoID string) error {
	if err := db.ReplaceRepoChunks(ctx, repoID, nil, nil); err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM repos WHERE repo_id = ?", repoID); err != nil {
		return fmt.Errorf("failed to delete repo: %w", err)
	}
	return nil
}
