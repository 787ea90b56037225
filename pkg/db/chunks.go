package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// ErrVecDisabled is returned by vector operations when vec_chunks was skipped
var ErrVecDisabled = errors.New("vector table disabled")

// Chunk is a stored chunk of a repository
type Chunk struct {
	Seq       int
	FilePath  string
	StartLine int // 1-indexed
	EndLine   int // 1-indexed, inclusive
	Content   string
}

// SearchResult represents a chunk with its similarity distance
type SearchResult struct {
	Chunk    Chunk
	Distance float64 // Cosine distance (lower is more similar)
}

func (r *SearchResult) Scan(rows *sql.Rows) error {
	return rows.Scan(&r.Chunk.Seq, &r.Chunk.FilePath, &r.Chunk.StartLine, &r.Chunk.EndLine, &r.Chunk.Content, &r.Distance)
}

// ReplaceRepoChunks swaps every chunk of a repository for a new generation
// in one transaction. vectors[i] belongs to chunks[i]; chunk i is stored
// with sequence index i.
func (db *DB) ReplaceRepoChunks(ctx context.Context, repoID string, chunks []Chunk, vectors [][]float32) error {
	if db.vecEnabled && len(vectors) != len(chunks) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if db.vecEnabled {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM repo_chunks WHERE repo_id = ?)", repoID); err != nil {
			return fmt.Errorf("failed to delete vectors: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM repo_chunks WHERE repo_id = ?", repoID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	insertChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO repo_chunks (repo_id, seq, file_path, start_line, end_line, content)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer insertChunk.Close()

	var insertVec *sql.Stmt
	if db.vecEnabled {
		insertVec, err = tx.PrepareContext(ctx, "INSERT INTO vec_chunks (chunk_id, repo_id, embedding) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare vector insert: %w", err)
		}
		defer insertVec.Close()
	}

	for i, c := range chunks {
		res, err := insertChunk.ExecContext(ctx, repoID, i, c.FilePath, c.StartLine, c.EndLine, c.Content)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
		if insertVec == nil {
			continue
		}

		if len(vectors[i]) != db.embeddingDim {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", db.embeddingDim, len(vectors[i]))
		}
		embBytes, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to serialize embedding: %w", err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get chunk ID: %w", err)
		}
		if _, err := insertVec.ExecContext(ctx, chunkID, repoID, embBytes); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// SearchSimilar returns up to k chunks of repoID nearest to the query vector
func (db *DB) SearchSimilar(ctx context.Context, repoID string, queryEmbedding []float32, k int) ([]*SearchResult, error) {
	if !db.vecEnabled {
		return nil, ErrVecDisabled
	}
	if len(queryEmbedding) != db.embeddingDim {
		return nil, fmt.Errorf("query embedding dimension mismatch: expected %d, got %d", db.embeddingDim, len(queryEmbedding))
	}
	if k <= 0 {
		k = 8
	}

	queryBytes, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query embedding: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		WITH knn AS (
			SELECT chunk_id, distance
			FROM vec_chunks
			WHERE embedding MATCH ?
			  AND k = ?
			  AND repo_id = ?
		)
		SELECT c.seq, c.file_path, c.start_line, c.end_line, c.content, knn.distance
		FROM knn
		JOIN repo_chunks c ON c.id = knn.chunk_id
		ORDER BY knn.distance`, queryBytes, k, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar chunks: %w", err)
	}
	defer rows.Close()

	return collect[SearchResult](rows)
}

// CountChunks returns the number of chunks stored for a repository
func (db *DB) CountChunks(ctx context.Context, repoID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM repo_chunks WHERE repo_id = ?", repoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
