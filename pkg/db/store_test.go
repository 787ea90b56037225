package db

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleChunks() []Chunk {
	return []Chunk{
		{FilePath: "main.go", StartLine: 1, EndLine: 80, Content: "package main"},
		{FilePath: "main.go", StartLine: 71, EndLine: 100, Content: "func main() {}"},
		{FilePath: "util.go", StartLine: 1, EndLine: 12, Content: "package util"},
	}
}

func TestReplaceRepoChunks(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 4)

	if err := db.ReplaceRepoChunks(ctx, "repo-a", sampleChunks(), nil); err != nil {
		t.Fatalf("ReplaceRepoChunks failed: %v", err)
	}
	if err := db.ReplaceRepoChunks(ctx, "repo-b", sampleChunks()[:1], nil); err != nil {
		t.Fatalf("ReplaceRepoChunks failed: %v", err)
	}

	got, err := storedChunks(ctx, db, "repo-a")
	if err != nil {
		t.Fatal(err)
	}
	want := sampleChunks()
	for i := range want {
		want[i].Seq = i
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %+v, want %+v", got, want)
	}

	// A new generation replaces the old one wholesale
	if err := db.ReplaceRepoChunks(ctx, "repo-a", sampleChunks()[2:], nil); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountChunks(ctx, "repo-a")
	if err != nil || n != 1 {
		t.Errorf("CountChunks(repo-a) = %d, %v", n, err)
	}
	n, _ = db.CountChunks(ctx, "repo-b")
	if n != 1 {
		t.Errorf("other repository touched: CountChunks(repo-b) = %d", n)
	}
}

func TestSearchSimilar_VecDisabled(t *testing.T) {
	db := openTestDB(t, 4)
	if _, err := db.SearchSimilar(context.Background(), "r", []float32{1, 0, 0, 0}, 3); !errors.Is(err, ErrVecDisabled) {
		t.Errorf("expected ErrVecDisabled, got %v", err)
	}
}

func TestSearchSimilar(t *testing.T) {
	ctx := context.Background()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "vec.db"), EmbeddingDim: 4})
	if err != nil {
		t.Skipf("sqlite-vec unavailable: %v", err)
	}
	defer db.Close()

	vectors := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0.9, 0.1, 0, 0}}
	if err := db.ReplaceRepoChunks(ctx, "repo-a", sampleChunks(), vectors); err != nil {
		t.Fatalf("ReplaceRepoChunks failed: %v", err)
	}
	if err := db.ReplaceRepoChunks(ctx, "repo-b", sampleChunks()[:1], [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Fatalf("ReplaceRepoChunks failed: %v", err)
	}

	results, err := db.SearchSimilar(ctx, "repo-a", []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.Seq != 0 || results[1].Chunk.Seq != 2 {
		t.Errorf("unexpected order: %d, %d", results[0].Chunk.Seq, results[1].Chunk.Seq)
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results not ordered by distance")
	}

	if _, err := db.SearchSimilar(ctx, "repo-a", []float32{1}, 2); err == nil {
		t.Error("expected dimension mismatch error")
	}

	// Replacing drops the old vectors too
	if err := db.ReplaceRepoChunks(ctx, "repo-a", nil, nil); err != nil {
		t.Fatal(err)
	}
	results, err = db.SearchSimilar(ctx, "repo-a", []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after replacement, got %d", len(results))
	}
}

func TestRepos(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 4)

	if _, err := db.GetRepo(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	r := Repo{ID: "abc123def456", Source: "https://example.com/x.git", Root: "/data/repos/abc123def456", FileCount: 3, ChunkCount: 7}
	if err := db.UpsertRepo(ctx, r); err != nil {
		t.Fatalf("UpsertRepo failed: %v", err)
	}
	r.ChunkCount = 9
	if err := db.UpsertRepo(ctx, r); err != nil {
		t.Fatalf("UpsertRepo update failed: %v", err)
	}

	got, err := db.GetRepo(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRepo failed: %v", err)
	}
	if got.Source != r.Source || got.ChunkCount != 9 || got.FileCount != 3 || got.IngestedAt.IsZero() {
		t.Errorf("unexpected repo: %+v", got)
	}

	db.UpsertRepo(ctx, Repo{ID: "000000000000", Source: "/tmp/x", Root: "/tmp/x"})
	all, err := db.ListRepos(ctx)
	if err != nil || len(all) != 2 || all[0].ID != "000000000000" {
		t.Errorf("ListRepos = %v, %v", all, err)
	}

	db.ReplaceRepoChunks(ctx, r.ID, sampleChunks(), nil)
	if err := db.DeleteRepo(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRepo failed: %v", err)
	}
	if n, _ := db.CountChunks(ctx, r.ID); n != 0 {
		t.Errorf("chunks left after delete: %d", n)
	}
	if _, err := db.GetRepo(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("repo still present: %v", err)
	}
}

func TestGraphDocuments(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, 4)

	if _, err := db.LoadGraphDocument(ctx, "r"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := db.SaveGraphDocument(ctx, "r", []byte(`{"files":["a"]}`)); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveGraphDocument(ctx, "r", []byte(`{"files":["b"]}`)); err != nil {
		t.Fatal(err)
	}
	doc, err := db.LoadGraphDocument(ctx, "r")
	if err != nil || string(doc) != `{"files":["b"]}` {
		t.Errorf("LoadGraphDocument = %s, %v", doc, err)
	}

	if err := db.DeleteGraphDocument(ctx, "r"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.LoadGraphDocument(ctx, "r"); !errors.Is(err, ErrNotFound) {
		t.Errorf("document survived delete: %v", err)
	}
}

// storedChunks reads back a repository's chunk rows in sequence order
func storedChunks(ctx context.Context, db *DB, repoID string) ([]Chunk, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, file_path, start_line, end_line, content
		FROM repo_chunks WHERE repo_id = ? ORDER BY seq`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Seq, &c.FilePath, &c.StartLine, &c.EndLine, &c.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
