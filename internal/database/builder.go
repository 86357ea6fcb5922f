package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Build assembles the database artifact described by req. The database is
// written to a temporary file next to the final path, populated inside a
// single transaction, verified, and then renamed into place.
func Build(ctx context.Context, req plugin.DatabaseRequest) (plugin.DatabaseResult, error) {
	tmpPath := req.ArtifactPath + ".tmp"
	_ = os.Remove(tmpPath)

	db, err := openDatabase(tmpPath)
	if err != nil {
		return plugin.DatabaseResult{}, fmt.Errorf("failed to open database: %w", err)
	}

	result, err := populate(ctx, db, req)
	closeErr := db.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return plugin.DatabaseResult{}, err
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return plugin.DatabaseResult{}, fmt.Errorf("failed to close database: %w", closeErr)
	}

	if err := os.Rename(tmpPath, req.ArtifactPath); err != nil {
		_ = os.Remove(tmpPath)
		return plugin.DatabaseResult{}, fmt.Errorf("failed to move database into place: %w", err)
	}

	result.ArtifactPath = req.ArtifactPath
	return result, nil
}

func populate(ctx context.Context, db *sql.DB, req plugin.DatabaseRequest) (plugin.DatabaseResult, error) {
	if err := ApplyMigrations(ctx, db, req.VectorIndex); err != nil {
		return plugin.DatabaseResult{}, fmt.Errorf("failed to apply migrations: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return plugin.DatabaseResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertDocuments(ctx, tx, req.Documents); err != nil {
		return plugin.DatabaseResult{}, err
	}
	if err := insertLinks(ctx, tx, req.Documents); err != nil {
		return plugin.DatabaseResult{}, err
	}
	if err := insertMedia(ctx, tx, req.Media); err != nil {
		return plugin.DatabaseResult{}, err
	}
	if req.VectorIndex {
		if err := insertEmbeddings(ctx, tx, req.Documents, req.Media); err != nil {
			return plugin.DatabaseResult{}, err
		}
		if err := insertNeighbors(ctx, tx, req.Similarity); err != nil {
			return plugin.DatabaseResult{}, err
		}
	}
	if err := insertMeta(ctx, tx, req); err != nil {
		return plugin.DatabaseResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return plugin.DatabaseResult{}, fmt.Errorf("failed to commit: %w", err)
	}

	return verify(ctx, db, req)
}

func insertDocuments(ctx context.Context, tx *sql.Tx, docs []*types.Document) error {
	query := `
		INSERT INTO documents (hash, path, slug, title, frontmatter, body, rendered, plain_text, word_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	pathQuery := `INSERT INTO document_paths (path, hash) VALUES (?, ?)`
	sorted := make([]*types.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	// Byte-identical files at different paths share a hash. The first
	// path in sort order owns the documents row; every path gets a
	// document_paths row.
	seen := make(map[types.Hash]bool, len(sorted))
	for _, doc := range sorted {
		if !seen[doc.Hash] {
			seen[doc.Hash] = true
			var frontmatter []byte
			if doc.Frontmatter != nil && doc.Frontmatter.Len() > 0 {
				var err error
				frontmatter, err = json.Marshal(doc.Frontmatter)
				if err != nil {
					return fmt.Errorf("failed to encode frontmatter for %s: %w", doc.Path, err)
				}
			}
			_, err := tx.ExecContext(ctx, query,
				doc.Hash[:], doc.Path, doc.Slug, doc.Title, frontmatter,
				doc.Body, doc.Rendered, doc.PlainText, doc.WordCount)
			if err != nil {
				return fmt.Errorf("failed to insert document %s: %w", doc.Path, err)
			}
		}
		if _, err := tx.ExecContext(ctx, pathQuery, doc.Path, doc.Hash[:]); err != nil {
			return fmt.Errorf("failed to insert document path %s: %w", doc.Path, err)
		}
	}
	return nil
}

func insertLinks(ctx context.Context, tx *sql.Tx, docs []*types.Document) error {
	query := `INSERT OR IGNORE INTO links (source_hash, target_hash) VALUES (?, ?)`
	for _, doc := range docs {
		for _, target := range doc.OutgoingLinks {
			if _, err := tx.ExecContext(ctx, query, doc.Hash[:], target[:]); err != nil {
				return fmt.Errorf("failed to insert link from %s: %w", doc.Path, err)
			}
		}
	}
	return nil
}

func insertMedia(ctx context.Context, tx *sql.Tx, assets []*types.MediaAsset) error {
	mediaQuery := `INSERT OR IGNORE INTO media (hash, original_path, mime_type) VALUES (?, ?, ?)`
	variantQuery := `
		INSERT OR IGNORE INTO variants (media_hash, label, path, format, width, height, size_bytes, copied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	sorted := make([]*types.MediaAsset, len(assets))
	copy(sorted, assets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OriginalPath < sorted[j].OriginalPath })

	for _, asset := range sorted {
		if _, err := tx.ExecContext(ctx, mediaQuery, asset.Hash[:], asset.OriginalPath, asset.MimeType); err != nil {
			return fmt.Errorf("failed to insert media %s: %w", asset.OriginalPath, err)
		}

		labels := make([]string, 0, len(asset.Variants))
		for label := range asset.Variants {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			v := asset.Variants[label]
			_, err := tx.ExecContext(ctx, variantQuery,
				asset.Hash[:], v.Label, v.Path, v.Format, v.Width, v.Height, v.Size, v.Copied)
			if err != nil {
				return fmt.Errorf("failed to insert variant %s of %s: %w", label, asset.OriginalPath, err)
			}
		}
	}
	return nil
}

func insertEmbeddings(ctx context.Context, tx *sql.Tx, docs []*types.Document, assets []*types.MediaAsset) error {
	query := `
		INSERT OR IGNORE INTO embeddings (owner_hash, owner_kind, model, dimension, vector)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, doc := range docs {
		if doc.Embedding == nil {
			continue
		}
		e := doc.Embedding
		_, err := tx.ExecContext(ctx, query,
			e.OwnerHash[:], "document", e.Model, e.Dimensions, serializeVector(e.Values))
		if err != nil {
			return fmt.Errorf("failed to insert embedding for %s: %w", doc.Path, err)
		}
	}
	for _, asset := range assets {
		if asset.Embedding == nil {
			continue
		}
		e := asset.Embedding
		_, err := tx.ExecContext(ctx, query,
			e.OwnerHash[:], "media", e.Model, e.Dimensions, serializeVector(e.Values))
		if err != nil {
			return fmt.Errorf("failed to insert embedding for %s: %w", asset.OriginalPath, err)
		}
	}
	return nil
}

func insertNeighbors(ctx context.Context, tx *sql.Tx, m *types.SimilarityMap) error {
	if m == nil {
		return nil
	}
	query := `INSERT INTO neighbors (source_hash, neighbor_hash, rank, score) VALUES (?, ?, ?, ?)`

	sources := make([]types.Hash, 0, len(m.Neighbors))
	for hash := range m.Neighbors {
		sources = append(sources, hash)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].String() < sources[j].String() })

	for _, source := range sources {
		for rank, n := range m.Neighbors[source] {
			if _, err := tx.ExecContext(ctx, query, source[:], n.Hash[:], rank, n.Score); err != nil {
				return fmt.Errorf("failed to insert neighbor for %s: %w", source.Short(), err)
			}
		}
	}
	return nil
}

func insertMeta(ctx context.Context, tx *sql.Tx, req plugin.DatabaseRequest) error {
	query := `INSERT INTO meta (key, value) VALUES (?, ?)`
	vectorIndex := "false"
	if req.VectorIndex {
		vectorIndex = "true"
	}
	entries := [][2]string{
		{"build_mode", BuildMode},
		{"vector_index", vectorIndex},
	}
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry[0], entry[1]); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", entry[0], err)
		}
	}
	return nil
}

// verify cross-checks row counts against the request before the artifact is
// moved into place.
func verify(ctx context.Context, db *sql.DB, req plugin.DatabaseRequest) (plugin.DatabaseResult, error) {
	tables := []string{"documents", "document_paths", "links", "media", "variants", "meta"}
	if req.VectorIndex {
		tables = append(tables, "embeddings", "neighbors")
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var count int64
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return plugin.DatabaseResult{}, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = count
	}

	uniqueDocs := make(map[types.Hash]bool, len(req.Documents))
	for _, doc := range req.Documents {
		uniqueDocs[doc.Hash] = true
	}
	if got, want := counts["documents"], int64(len(uniqueDocs)); got != want {
		return plugin.DatabaseResult{}, fmt.Errorf("document count mismatch: stored %d, expected %d", got, want)
	}
	if got, want := counts["document_paths"], int64(len(req.Documents)); got != want {
		return plugin.DatabaseResult{}, fmt.Errorf("document path count mismatch: stored %d, expected %d", got, want)
	}
	if got, want := counts["media"], int64(len(req.Media)); got != want {
		return plugin.DatabaseResult{}, fmt.Errorf("media count mismatch: stored %d, expected %d", got, want)
	}

	return plugin.DatabaseResult{Tables: tables, RowCounts: counts}, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
