package db

// Schema version for migration tracking
const SchemaVersion = "1.0.0"

// DDL statements for database initialization
const (
	// Meta table stores configuration and version info
	CreateMetaTable = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	// Repos table records the last completed ingest of each repository
	CreateReposTable = `
CREATE TABLE IF NOT EXISTS repos (
    repo_id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    root TEXT NOT NULL,
    file_count INTEGER NOT NULL DEFAULT 0,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    ingested_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

	// Repo_chunks holds chunk text and position, keyed by (repo_id, seq).
	// Its id doubles as the vec_chunks rowid.
	CreateRepoChunksTable = `
CREATE TABLE IF NOT EXISTS repo_chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    content TEXT NOT NULL,
    UNIQUE(repo_id, seq)
);`

	CreateRepoChunksRepoIndex = `
CREATE INDEX IF NOT EXISTS idx_repo_chunks_repo ON repo_chunks(repo_id);`

	// Vec_chunks virtual table for vector similarity search.
	// Dimension must be specified at creation time; repo_id partitions the
	// index so KNN queries only scan one repository.
	CreateVecChunksTableTemplate = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    repo_id TEXT partition key,
    embedding FLOAT[%d] distance_metric=cosine
);`

	// Graph_cache stores one serialized graph document per repository
	CreateGraphCacheTable = `
CREATE TABLE IF NOT EXISTS graph_cache (
    repo_id TEXT PRIMARY KEY,
    document BLOB NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

	// Enable WAL mode for concurrent reads/writes
	EnableWALMode = `PRAGMA journal_mode=WAL;`

	// Set reasonable WAL checkpoint parameters
	SetWALCheckpoint = `PRAGMA wal_autocheckpoint=1000;`

	// Enable foreign key constraints
	EnableForeignKeys = `PRAGMA foreign_keys=ON;`
)

// MetaKeys are standard keys stored in the meta table
const (
	MetaKeySchemaVersion = "schema_version"
	MetaKeyCreatedAt     = "created_at"
	MetaKeyEmbeddingDim  = "embedding_dimension"
	MetaKeyEmbedder      = "embedder" // provider/model that produced the stored vectors
)
