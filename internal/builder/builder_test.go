package builder

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplanwebsites/repomd/internal/database"
	"github.com/iplanwebsites/repomd/internal/embedding/local"
	"github.com/iplanwebsites/repomd/internal/output"
	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/internal/similarity"
	"github.com/iplanwebsites/repomd/pkg/types"
)

func writeVault(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func twoDocVault(t *testing.T) string {
	t.Helper()
	return writeVault(t, map[string]string{
		"alpha.md": "# Alpha\n\nFirst page, links to [beta](beta.md).\n",
		"beta.md":  "# Beta\n\nSecond page.\n",
	})
}

func TestRun_NoPlugins(t *testing.T) {
	outputRoot := filepath.Join(t.TempDir(), "out")
	b := New(Config{VaultRoot: twoDocVault(t), OutputRoot: outputRoot}, plugin.NewManager())

	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Issues)
	require.NotNil(t, result.Manifest)
	assert.Equal(t, 2, result.Manifest.Stats.Documents)
	assert.NotEmpty(t, result.Manifest.RunID)
	assert.Equal(t, StateDone, b.State())

	assert.FileExists(t, filepath.Join(outputRoot, output.DocumentsFile))
	assert.FileExists(t, filepath.Join(outputRoot, output.ManifestFile))
	assert.NoFileExists(t, filepath.Join(outputRoot, output.TextEmbeddingsFile))
	assert.NoFileExists(t, filepath.Join(outputRoot, output.SimilarityFile))
	assert.NoFileExists(t, filepath.Join(outputRoot, output.DatabaseFile))
}

func TestRun_SimilarityWithoutEmbedder(t *testing.T) {
	outputRoot := filepath.Join(t.TempDir(), "out")
	manager := plugin.NewManager()
	require.NoError(t, manager.Register(similarity.NewPlugin(similarity.Config{})))

	b := New(Config{VaultRoot: twoDocVault(t), OutputRoot: outputRoot}, manager)
	result, err := b.Run(context.Background())

	var missing *plugin.MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, plugin.CapTextEmbedder, missing.Dependency)
	assert.Equal(t, plugin.CapSimilarity, missing.Plugin)

	assert.False(t, result.Success)
	assert.Equal(t, StateFailed, b.State())

	// Graph validation fails before anything touches the filesystem.
	assert.NoDirExists(t, outputRoot)
}

func TestRun_FullPipeline(t *testing.T) {
	outputRoot := filepath.Join(t.TempDir(), "out")
	manager := plugin.NewManager()
	require.NoError(t, manager.Register(local.New()))
	require.NoError(t, manager.Register(similarity.NewPlugin(similarity.Config{})))
	require.NoError(t, manager.Register(database.NewPlugin()))

	b := New(Config{VaultRoot: twoDocVault(t), OutputRoot: outputRoot}, manager)
	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Manifest.Stats.Embeddings)
	assert.Equal(t, 1, result.Manifest.Stats.Pairs)

	assert.FileExists(t, filepath.Join(outputRoot, output.TextEmbeddingsFile))
	assert.FileExists(t, filepath.Join(outputRoot, output.SimilarityFile))
	assert.FileExists(t, filepath.Join(outputRoot, output.DatabaseFile))

	// Every staged file is accounted for in the manifest.
	for _, name := range []string{output.DocumentsFile, output.DatabaseFile, output.SimilarityFile} {
		_, ok := result.Manifest.Lookup(name)
		assert.True(t, ok, "manifest entry missing for %s", name)
	}
}

func TestRun_StrictModeFailsOnIssues(t *testing.T) {
	vaultRoot := writeVault(t, map[string]string{
		"good.md": "# Good\n\nFine.\n",
		"bad.md":  "---\ntitle: [unclosed\n---\n\nBroken frontmatter.\n",
	})
	outputRoot := filepath.Join(t.TempDir(), "out")

	b := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot, Strict: true}, plugin.NewManager())
	result, err := b.Run(context.Background())

	require.Error(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Issues)
	assert.NoDirExists(t, outputRoot, "strict failure must not publish")
	assert.Equal(t, StateFailed, b.State())
}

func TestRun_NonStrictSucceedsWithIssues(t *testing.T) {
	vaultRoot := writeVault(t, map[string]string{
		"good.md": "# Good\n\nFine.\n",
		"bad.md":  "---\ntitle: [unclosed\n---\n\nBroken frontmatter.\n",
	})
	outputRoot := filepath.Join(t.TempDir(), "out")

	b := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot}, plugin.NewManager())
	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, types.SeverityRecoverable, result.Issues[0].Severity)
	assert.Equal(t, 1, result.Manifest.Stats.Documents, "the malformed document is skipped")

	data, err := os.ReadFile(filepath.Join(outputRoot, output.IssuesFile))
	require.NoError(t, err)
	var persisted []types.Issue
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, len(result.Issues))
}

func TestRun_IssuesArtifactOrderedByPath(t *testing.T) {
	broken := "---\ntitle: [unclosed\n---\n\nBroken frontmatter.\n"
	vaultRoot := writeVault(t, map[string]string{
		"good.md":  "# Good\n\nFine.\n",
		"z-bad.md": broken,
		"a-bad.md": broken,
		"m-bad.md": broken,
	})
	outputRoot := filepath.Join(t.TempDir(), "out")

	b := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot, Workers: 4}, plugin.NewManager())
	result, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Issues, 3)

	// Parse workers finish in arbitrary order; the artifact must not.
	data, err := os.ReadFile(filepath.Join(outputRoot, output.IssuesFile))
	require.NoError(t, err)
	var persisted []types.Issue
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Len(t, persisted, 3)
	assert.Equal(t, "a-bad.md", persisted[0].Path)
	assert.Equal(t, "m-bad.md", persisted[1].Path)
	assert.Equal(t, "z-bad.md", persisted[2].Path)
}

func TestRun_CancelledLeavesPreviousBuild(t *testing.T) {
	vaultRoot := twoDocVault(t)
	outputRoot := filepath.Join(t.TempDir(), "out")

	first := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot}, plugin.NewManager())
	firstResult, err := first.Run(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot}, plugin.NewManager())
	_, err = second.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	m, err := output.ReadManifest(outputRoot)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, firstResult.Manifest.RunID, m.RunID, "a failed run must not disturb the published build")

	siblings, err := os.ReadDir(filepath.Dir(outputRoot))
	require.NoError(t, err)
	assert.Len(t, siblings, 1, "no staging leftovers after a failed run")
}

func TestRun_RebuildReplacesOutput(t *testing.T) {
	vaultRoot := twoDocVault(t)
	outputRoot := filepath.Join(t.TempDir(), "out")

	r1, err := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot}, plugin.NewManager()).Run(context.Background())
	require.NoError(t, err)
	r2, err := New(Config{VaultRoot: vaultRoot, OutputRoot: outputRoot}, plugin.NewManager()).Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, r1.Manifest.RunID, r2.Manifest.RunID)

	// Same sources produce byte-identical artifacts.
	hashesOf := func(m *types.Manifest) map[string]string {
		out := make(map[string]string)
		for _, e := range m.Entries {
			out[e.Path] = e.Hash.String()
		}
		return out
	}
	h1, h2 := hashesOf(r1.Manifest), hashesOf(r2.Manifest)
	for _, name := range []string{output.DocumentsFile, output.PathsFile, output.MediaFile} {
		assert.Equal(t, h1[name], h2[name], "artifact %s must be reproducible", name)
	}
}

func TestRun_FailedInitOfHardDependency(t *testing.T) {
	outputRoot := filepath.Join(t.TempDir(), "out")
	manager := plugin.NewManager()
	require.NoError(t, manager.Register(&failingEmbedder{local.New()}))
	require.NoError(t, manager.Register(similarity.NewPlugin(similarity.Config{})))

	b := New(Config{VaultRoot: twoDocVault(t), OutputRoot: outputRoot}, manager)
	result, err := b.Run(context.Background())

	var depFailed *plugin.DependencyFailedError
	require.ErrorAs(t, err, &depFailed)
	assert.False(t, result.Success)
	assert.NoDirExists(t, outputRoot)
}

// failingEmbedder wraps the local embedder with an Init that always errors.
type failingEmbedder struct {
	*local.Embedder
}

func (f *failingEmbedder) Init(context.Context, *plugin.InitContext) error {
	return errors.New("model file missing")
}
