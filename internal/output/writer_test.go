package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplanwebsites/repomd/pkg/types"
)

func TestWriter_CommitPublishesStagedTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")

	w, err := NewWriter(root)
	require.NoError(t, err)

	require.NoError(t, w.WriteJSON(DocumentsFile, []string{"a", "b"}))
	require.NoError(t, w.WriteJSON("media/index.json", map[string]int{"count": 0}))

	entries, err := w.CollectEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	m := &types.Manifest{RunID: "run-1", CreatedAt: time.Now().UTC(), Entries: entries}
	require.NoError(t, w.WriteManifest(m))
	require.NoError(t, w.Commit())

	assert.FileExists(t, filepath.Join(root, DocumentsFile))
	assert.FileExists(t, filepath.Join(root, "media", "index.json"))
	assert.FileExists(t, filepath.Join(root, ManifestFile))

	// No staging leftovers next to the output root.
	siblings, err := os.ReadDir(filepath.Dir(root))
	require.NoError(t, err)
	assert.Len(t, siblings, 1)
}

func TestWriter_CommitReplacesPreviousBuild(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")

	first, err := NewWriter(root)
	require.NoError(t, err)
	require.NoError(t, first.WriteJSON(DocumentsFile, []string{"old"}))
	require.NoError(t, first.WriteJSON("stale.json", "gone after the next build"))
	require.NoError(t, first.Commit())

	second, err := NewWriter(root)
	require.NoError(t, err)
	require.NoError(t, second.WriteJSON(DocumentsFile, []string{"new"}))
	require.NoError(t, second.Commit())

	data, err := os.ReadFile(filepath.Join(root, DocumentsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "new")

	_, err = os.Stat(filepath.Join(root, "stale.json"))
	assert.True(t, os.IsNotExist(err), "files from the replaced build must not leak through")
}

func TestWriter_DiscardLeavesPreviousBuildIntact(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")

	first, err := NewWriter(root)
	require.NoError(t, err)
	require.NoError(t, first.WriteManifest(&types.Manifest{RunID: "run-1"}))
	require.NoError(t, first.Commit())

	second, err := NewWriter(root)
	require.NoError(t, err)
	require.NoError(t, second.WriteJSON(DocumentsFile, []string{"half-finished"}))
	require.NoError(t, second.Discard())

	m, err := ReadManifest(root)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "run-1", m.RunID)

	siblings, err := os.ReadDir(filepath.Dir(root))
	require.NoError(t, err)
	assert.Len(t, siblings, 1, "discard must remove the staging directory")
}

func TestWriter_CommitTwiceFails(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	assert.Error(t, w.Commit())
}

func TestCollectEntries_SortedAndSized(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Discard() })

	require.NoError(t, w.WriteJSON("b.json", "bbbb"))
	require.NoError(t, w.WriteJSON("a.json", "aaaa"))

	entries, err := w.CollectEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.LessOrEqual(t, entries[0].Hash.String(), entries[1].Hash.String())
	for _, e := range entries {
		assert.False(t, e.Hash.IsZero())
		assert.Positive(t, e.Size)
	}
}

func TestReadManifest_Missing(t *testing.T) {
	m, err := ReadManifest(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, m)
}
