// Package types provides shared type definitions for the repomd build pipeline.
//
// This package defines the domain types exchanged between pipeline stages:
// documents, media assets, embedding vectors, similarity edges, issues, and
// the build manifest. The content hash is the only cross-reference between
// stages; no stage passes positional indices to another.
//
// # Core Types
//
// Document is the parsed form of one markdown file in the vault:
//
//	doc := &types.Document{
//	    Hash:      hash,
//	    Path:      "notes/go-concurrency.md",
//	    Slug:      "notes/go-concurrency",
//	    PlainText: "Goroutines are cheap...",
//	}
//
// MediaAsset tracks one media file and the variants generated for it:
//
//	asset := &types.MediaAsset{
//	    Hash:         hash,
//	    OriginalPath: "img/diagram.png",
//	    MimeType:     "image/png",
//	}
//
// # Issues
//
// Stages report per-item problems as Issues instead of failing the run.
// The Ledger is safe for concurrent appends from worker pools:
//
//	ledger := types.NewLedger()
//	ledger.Append(types.Issue{
//	    Severity: types.SeverityRecoverable,
//	    Stage:    types.StageIngest,
//	    Subject:  doc.Hash,
//	    Message:  "malformed frontmatter",
//	})
//
// # Manifest
//
// Manifest is the single source of truth for a successful build. Entries are
// sorted by hash so two builds over identical inputs produce byte-identical
// manifests.
package types
