package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking. No applied_at column: the artifact must be
-- byte-identical across builds of the same inputs, so nothing in the
-- schema may default to wall-clock time.
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY
);

-- Build metadata
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Documents table, one row per distinct content hash. path holds the
-- first vault path carrying that content; the rest live in document_paths.
CREATE TABLE IF NOT EXISTS documents (
    hash BLOB PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    frontmatter TEXT,
    body TEXT NOT NULL,
    rendered TEXT NOT NULL,
    plain_text TEXT NOT NULL,
    word_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_documents_slug ON documents(slug);
CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);

-- Every vault path, including those of byte-identical duplicates
CREATE TABLE IF NOT EXISTS document_paths (
    path TEXT PRIMARY KEY,
    hash BLOB NOT NULL,
    FOREIGN KEY (hash) REFERENCES documents(hash) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_document_paths_hash ON document_paths(hash);

-- Resolved internal links, one row per edge
CREATE TABLE IF NOT EXISTS links (
    source_hash BLOB NOT NULL,
    target_hash BLOB NOT NULL,
    PRIMARY KEY (source_hash, target_hash),
    FOREIGN KEY (source_hash) REFERENCES documents(hash) ON DELETE CASCADE,
    FOREIGN KEY (target_hash) REFERENCES documents(hash) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_hash);

-- Media assets table
CREATE TABLE IF NOT EXISTS media (
    hash BLOB PRIMARY KEY,
    original_path TEXT NOT NULL,
    mime_type TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_media_path ON media(original_path);

-- Generated media variants
CREATE TABLE IF NOT EXISTS variants (
    media_hash BLOB NOT NULL,
    label TEXT NOT NULL,
    path TEXT NOT NULL,
    format TEXT NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    copied BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (media_hash, label),
    FOREIGN KEY (media_hash) REFERENCES media(hash) ON DELETE CASCADE
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS variants;
DROP TABLE IF EXISTS media;
DROP TABLE IF EXISTS links;
DROP TABLE IF EXISTS document_paths;
DROP TABLE IF EXISTS documents;
DROP TABLE IF EXISTS meta;
DROP TABLE IF EXISTS schema_version;
`

// vectorIndexSchema is applied on top of the base schema when a text
// embedder is configured. Vectors are stored as little-endian float32 blobs.
const vectorIndexSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
    owner_hash BLOB NOT NULL,
    owner_kind TEXT NOT NULL,
    model TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    vector BLOB NOT NULL,
    PRIMARY KEY (owner_hash, model)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);

CREATE TABLE IF NOT EXISTS neighbors (
    source_hash BLOB NOT NULL,
    neighbor_hash BLOB NOT NULL,
    rank INTEGER NOT NULL,
    score REAL NOT NULL,
    PRIMARY KEY (source_hash, rank)
);

CREATE INDEX IF NOT EXISTS idx_neighbors_source ON neighbors(source_hash);
`

// ApplyMigrations runs all pending migrations. When vectorIndex is true the
// embedding tables are created as well.
func ApplyMigrations(ctx context.Context, db *sql.DB, vectorIndex bool) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		currentVersion, err = highestAppliedVersion(ctx, db)
		if err != nil {
			return err
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		_, err = db.ExecContext(ctx, migration.Up)
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	if vectorIndex {
		if _, err := db.ExecContext(ctx, vectorIndexSchema); err != nil {
			return fmt.Errorf("failed to create vector index schema: %w", err)
		}
	}

	return nil
}

// highestAppliedVersion scans the schema_version rows and returns the
// largest recorded version by semver comparison.
func highestAppliedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	highest := semver.MustParse("0.0.0")
	for rows.Next() {
		var versionStr string
		if err := rows.Scan(&versionStr); err != nil {
			return nil, fmt.Errorf("failed to scan schema_version: %w", err)
		}
		version, err := semver.NewVersion(versionStr)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", versionStr, err)
		}
		if version.GreaterThan(highest) {
			highest = version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	return highest, nil
}
