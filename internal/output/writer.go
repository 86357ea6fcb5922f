package output

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/iplanwebsites/repomd/internal/identity"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// Artifact file names within the output root.
const (
	DocumentsFile       = "documents.json"
	PathsFile           = "paths.json"
	MediaFile           = "media.json"
	TextEmbeddingsFile  = "embeddings-text.json"
	MediaEmbeddingsFile = "embeddings-media.json"
	SimilarityFile      = "similarity.json"
	IssuesFile          = "issues.json"
	DatabaseFile        = "repo.db"
	ManifestFile        = "manifest.json"
)

// Writer stages one build's artifacts. The staging directory is a hidden
// sibling of the output root so the swap in Commit is a same-filesystem
// rename.
type Writer struct {
	outputRoot string
	stagingDir string
	done       bool
}

// NewWriter creates the staging directory for a run targeting outputRoot.
func NewWriter(outputRoot string) (*Writer, error) {
	outputRoot = filepath.Clean(outputRoot)
	parent := filepath.Dir(outputRoot)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output parent: %w", err)
	}

	stagingDir := filepath.Join(parent, ".staging-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &Writer{outputRoot: outputRoot, stagingDir: stagingDir}, nil
}

// StagingDir returns the directory stages write their artifacts under.
func (w *Writer) StagingDir() string {
	return w.stagingDir
}

// WriteJSON marshals v and writes it to relPath under the staging directory.
func (w *Writer) WriteJSON(relPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", relPath, err)
	}
	data = append(data, '\n')

	dest := filepath.Join(w.stagingDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}

// CollectEntries walks the staged tree and returns a manifest entry per
// file, sorted by hash then path. Call it before writing the manifest so the
// manifest never lists itself.
func (w *Writer) CollectEntries() ([]types.ManifestEntry, error) {
	var entries []types.ManifestEntry

	err := filepath.WalkDir(w.stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, _, err := identity.ComputeFile(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		rel, err := filepath.Rel(w.stagingDir, path)
		if err != nil {
			return err
		}

		entries = append(entries, types.ManifestEntry{
			Path: filepath.ToSlash(rel),
			Hash: hash,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := types.Manifest{Entries: entries}
	m.Sort()
	return m.Entries, nil
}

// WriteManifest sorts and stages the manifest. It must be the last artifact
// written before Commit.
func (w *Writer) WriteManifest(m *types.Manifest) error {
	m.Sort()
	return w.WriteJSON(ManifestFile, m)
}

// Commit swaps the staged tree into the output root. The previous build, if
// any, is only removed after the new tree is in place.
func (w *Writer) Commit() error {
	if w.done {
		return fmt.Errorf("writer already committed or discarded")
	}

	var oldDir string
	if _, err := os.Stat(w.outputRoot); err == nil {
		oldDir = filepath.Join(filepath.Dir(w.outputRoot), ".old-"+uuid.NewString())
		if err := os.Rename(w.outputRoot, oldDir); err != nil {
			return fmt.Errorf("failed to move previous build aside: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat output root: %w", err)
	}

	if err := os.Rename(w.stagingDir, w.outputRoot); err != nil {
		if oldDir != "" {
			_ = os.Rename(oldDir, w.outputRoot)
		}
		return fmt.Errorf("failed to publish build: %w", err)
	}

	if oldDir != "" {
		if err := os.RemoveAll(oldDir); err != nil {
			return fmt.Errorf("failed to remove previous build: %w", err)
		}
	}

	w.done = true
	return nil
}

// Discard removes the staging directory, leaving any previous build intact.
func (w *Writer) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	return os.RemoveAll(w.stagingDir)
}

// ReadManifest loads the manifest of a previously published build. A missing
// manifest is not an error; it returns (nil, nil).
func ReadManifest(outputRoot string) (*types.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(outputRoot, ManifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
