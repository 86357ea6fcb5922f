package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplanwebsites/repomd/pkg/types"
)

func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func ingest(t *testing.T, root string) (*Result, *types.Ledger) {
	t.Helper()
	ledger := types.NewLedger()
	result, err := New(Config{Workers: 4}).Ingest(context.Background(), root, ledger)
	require.NoError(t, err)
	return result, ledger
}

func TestIngest_TwoPlainDocuments(t *testing.T) {
	root := writeVault(t, map[string]string{
		"alpha.md": "# Alpha\n\nFirst note.\n",
		"beta.md":  "# Beta\n\nSecond note.\n",
	})

	result, ledger := ingest(t, root)

	require.Len(t, result.Documents, 2)
	assert.Zero(t, ledger.Len())
	assert.Equal(t, "alpha.md", result.Documents[0].Path, "documents sorted by path")
	assert.Equal(t, "beta.md", result.Documents[1].Path)
	assert.Empty(t, result.Media)
}

func TestIngest_LinkResolutionAndBacklinks(t *testing.T) {
	root := writeVault(t, map[string]string{
		"index.md":       "# Index\n\nSee [[notes/alpha]] and [beta](notes/beta.md).\n",
		"notes/alpha.md": "# Alpha\n\nBack to [[index]].\n",
		"notes/beta.md":  "# Beta\n\nNo links.\n",
	})

	result, _ := ingest(t, root)
	require.Len(t, result.Documents, 3)

	byPath := make(map[string]*types.Document)
	for _, doc := range result.Documents {
		byPath[doc.Path] = doc
	}

	index := byPath["index.md"]
	alpha := byPath["notes/alpha.md"]
	beta := byPath["notes/beta.md"]

	assert.ElementsMatch(t, []types.Hash{alpha.Hash, beta.Hash}, index.OutgoingLinks)
	assert.Equal(t, []types.Hash{index.Hash}, alpha.OutgoingLinks)
	assert.Empty(t, beta.OutgoingLinks)

	assert.Equal(t, []types.Hash{alpha.Hash}, index.Backlinks)
	assert.Equal(t, []types.Hash{index.Hash}, alpha.Backlinks)
	assert.Equal(t, []types.Hash{index.Hash}, beta.Backlinks)
}

func TestIngest_MalformedFrontmatterSkipsDocument(t *testing.T) {
	root := writeVault(t, map[string]string{
		"good.md": "# Good\n\nFine.\n",
		"bad.md":  "---\ntitle: Broken\n\nnever closed\n",
	})

	result, ledger := ingest(t, root)

	require.Len(t, result.Documents, 1)
	assert.Equal(t, "good.md", result.Documents[0].Path)
	require.Equal(t, 1, ledger.Len())

	issue := ledger.All()[0]
	assert.Equal(t, types.SeverityRecoverable, issue.Severity)
	assert.Equal(t, types.StageIngest, issue.Stage)
	assert.Equal(t, "bad.md", issue.Path)
}

func TestIngest_MediaDiscovery(t *testing.T) {
	root := writeVault(t, map[string]string{
		"note.md":          "# Note\n",
		"img/photo.png":    "not-really-png-bytes",
		"img/photo2.png":   "not-really-png-bytes",
		"files/data.bin":   "\x00\x01\x02",
		".hidden/skip.png": "skipped",
	})

	result, _ := ingest(t, root)

	require.Len(t, result.Media, 3)
	assert.Equal(t, "files/data.bin", result.Media[0].OriginalPath)
	assert.Equal(t, "image/png", result.Media[1].MimeType)

	// Identical bytes under different names resolve to the same hash.
	assert.Equal(t, result.Media[1].Hash, result.Media[2].Hash)
}

func TestIngest_HiddenDirectoriesSkipped(t *testing.T) {
	root := writeVault(t, map[string]string{
		"visible.md":     "# Visible\n",
		".obsidian/a.md": "# Config\n",
	})

	result, _ := ingest(t, root)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "visible.md", result.Documents[0].Path)
}

func TestIngest_Cancelled(t *testing.T) {
	root := writeVault(t, map[string]string{"a.md": "# A\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Ingest(ctx, root, types.NewLedger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex_Resolve(t *testing.T) {
	root := writeVault(t, map[string]string{
		"notes/alpha.md": "# Alpha\n",
	})
	result, _ := ingest(t, root)
	ix := result.Index
	want := result.Documents[0].Hash

	for _, target := range []string{"notes/alpha", "notes/alpha.md", "alpha", "Alpha", "notes/alpha#section"} {
		h, ok := ix.Resolve(target, ".")
		assert.True(t, ok, "target %q should resolve", target)
		assert.Equal(t, want, h)
	}

	_, ok := ix.Resolve("https://example.com/page", ".")
	assert.False(t, ok, "external links never resolve")

	_, ok = ix.Resolve("missing-note", ".")
	assert.False(t, ok)
}

func TestIndex_ResolveAmbiguousBareName(t *testing.T) {
	root := writeVault(t, map[string]string{
		"a/note.md": "# A\n",
		"b/note.md": "# B\n",
		"c/from.md": "# From\n\nSee [[note]].\n",
	})
	result, _ := ingest(t, root)
	ix := result.Index

	byPath := make(map[string]*types.Document)
	for _, doc := range result.Documents {
		byPath[doc.Path] = doc
	}
	want := byPath["a/note.md"].Hash

	// Same-named notes in different folders: the smallest slug wins,
	// every time.
	for i := 0; i < 1000; i++ {
		h, ok := ix.Resolve("note", "c")
		require.True(t, ok)
		require.Equal(t, want, h)
	}

	assert.Equal(t, []types.Hash{want}, byPath["c/from.md"].OutgoingLinks)
}
