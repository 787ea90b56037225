package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveGraphDocument replaces the graph document of a repository
func (db *DB) SaveGraphDocument(ctx context.Context, repoID string, document []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO graph_cache (repo_id, document, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(repo_id) DO UPDATE SET
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP`,
		repoID, document)
	if err != nil {
		return fmt.Errorf("failed to save graph document: %w", err)
	}
	return nil
}

// LoadGraphDocument returns the stored document or ErrNotFound
func (db *DB) LoadGraphDocument(ctx context.Context, repoID string) ([]byte, error) {
	var document []byte
	err := db.conn.QueryRowContext(ctx, "SELECT document FROM graph_cache WHERE repo_id = ?", repoID).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("graph document %s: %w", repoID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph document: %w", err)
	}
	return document, nil
}

// DeleteGraphDocument removes a repository's document if present
func (db *DB) DeleteGraphDocument(ctx context.Context, repoID string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM graph_cache WHERE repo_id = ?", repoID); err != nil {
		return fmt.Errorf("failed to delete graph document: %w", err)
	}
	return nil
}
