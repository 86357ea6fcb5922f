package vault

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iplanwebsites/repomd/internal/identity"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// Config contains configuration for the ingestor.
type Config struct {
	Workers int // Number of concurrent parse workers (default: runtime.NumCPU())
}

// Result is the output of a completed ingest: parsed documents with their
// link graph, discovered media assets, and the path/slug index.
type Result struct {
	Documents []*types.Document
	Media     []*types.MediaAsset
	Index     *Index
}

// Ingestor walks a vault and parses its contents.
type Ingestor struct {
	workers int
}

// New creates an Ingestor.
func New(cfg Config) *Ingestor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Ingestor{workers: workers}
}

// Ingest runs both passes over the vault rooted at root. Per-file failures
// are recorded in issues and skipped; only walk-level failures are fatal.
func (in *Ingestor) Ingest(ctx context.Context, root string, issues *types.Ledger) (*Result, error) {
	markdown, media, err := discoverFiles(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk vault: %w", err)
	}

	docs, err := in.parseDocuments(ctx, root, markdown, issues)
	if err != nil {
		return nil, err
	}

	assets, err := in.hashMedia(ctx, root, media, issues)
	if err != nil {
		return nil, err
	}

	// Deterministic ordering regardless of worker completion order.
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	sort.Slice(assets, func(i, j int) bool { return assets[i].OriginalPath < assets[j].OriginalPath })

	ix := NewIndex()
	for _, doc := range docs {
		ix.Add(doc)
	}
	resolveLinks(docs, ix)

	return &Result{Documents: docs, Media: assets, Index: ix}, nil
}

// discoverFiles finds markdown and media files under root, skipping hidden
// files and directories.
func discoverFiles(root string) (markdown, media []string, err error) {
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown":
			markdown = append(markdown, rel)
		default:
			media = append(media, rel)
		}
		return nil
	})
	return markdown, media, err
}

// parseDocuments parses markdown files across a bounded worker pool.
func (in *Ingestor) parseDocuments(ctx context.Context, root string, files []string, issues *types.Ledger) ([]*types.Document, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	var mu sync.Mutex
	docs := make([]*types.Document, 0, len(files))

	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(filepath.Join(root, rel))
			if err != nil {
				issues.Append(types.Issue{
					Severity: types.SeverityRecoverable,
					Stage:    types.StageIngest,
					Path:     filepath.ToSlash(rel),
					Message:  fmt.Sprintf("unreadable file: %v", err),
				})
				return nil
			}
			doc, err := parseDocument(raw, rel, identity.Compute(raw))
			if err != nil {
				issues.Append(types.Issue{
					Severity: types.SeverityRecoverable,
					Stage:    types.StageIngest,
					Path:     filepath.ToSlash(rel),
					Message:  err.Error(),
				})
				return nil
			}
			mu.Lock()
			docs = append(docs, doc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// hashMedia computes identities for media files across the worker pool.
func (in *Ingestor) hashMedia(ctx context.Context, root string, files []string, issues *types.Ledger) ([]*types.MediaAsset, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	var mu sync.Mutex
	assets := make([]*types.MediaAsset, 0, len(files))

	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, _, err := identity.ComputeFile(filepath.Join(root, rel))
			if err != nil {
				issues.Append(types.Issue{
					Severity: types.SeverityRecoverable,
					Stage:    types.StageIngest,
					Path:     filepath.ToSlash(rel),
					Message:  fmt.Sprintf("unreadable media file: %v", err),
				})
				return nil
			}
			mimeType := mime.TypeByExtension(filepath.Ext(rel))
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			mu.Lock()
			assets = append(assets, &types.MediaAsset{
				Hash:         hash,
				OriginalPath: filepath.ToSlash(rel),
				MimeType:     mimeType,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}
