package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iplanwebsites/repomd/internal/embedding"
	"github.com/iplanwebsites/repomd/internal/media"
	"github.com/iplanwebsites/repomd/internal/output"
	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/internal/vault"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// Config controls one build run.
type Config struct {
	// VaultRoot is the directory holding markdown and media sources.
	VaultRoot string

	// OutputRoot is the published artifact directory.
	OutputRoot string

	// Workers bounds per-stage concurrency (default: runtime.NumCPU()).
	Workers int

	// Strict fails the run if any issue was recorded, regardless of
	// severity.
	Strict bool

	Media     media.Config
	Embedding embedding.Config
}

// Builder runs the pipeline end to end.
type Builder struct {
	cfg     Config
	manager *plugin.Manager

	mu    sync.Mutex
	state State
}

// New creates a Builder over a plugin manager with all plugins registered.
func New(cfg Config, manager *plugin.Manager) *Builder {
	if manager == nil {
		manager = plugin.NewManager()
	}
	return &Builder{cfg: cfg, manager: manager}
}

// State returns the current phase.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Builder) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Run executes a full build. Plugin graph validation happens before any
// filesystem work, so a misconfigured plugin set fails without touching the
// vault or the previous output. A failed run discards its staging directory
// and leaves the previously published build untouched.
func (b *Builder) Run(ctx context.Context) (*types.BuildResult, error) {
	start := time.Now()
	runID := ulid.Make().String()
	issues := types.NewLedger()

	// Validate the plugin graph up front.
	if _, err := b.manager.Resolve(); err != nil {
		b.setState(StateFailed)
		return failedResult(issues), err
	}

	writer, err := output.NewWriter(b.cfg.OutputRoot)
	if err != nil {
		b.setState(StateFailed)
		return failedResult(issues), err
	}

	result, err := b.run(ctx, runID, writer, issues, start)
	if err != nil {
		_ = writer.Discard()
		b.setState(StateFailed)
		return failedResult(issues), err
	}
	return result, nil
}

func (b *Builder) run(ctx context.Context, runID string, writer *output.Writer, issues *types.Ledger, start time.Time) (*types.BuildResult, error) {
	b.setState(StateIngesting)
	ingestor := vault.New(vault.Config{Workers: b.cfg.Workers})
	ingest, err := ingestor.Ingest(ctx, b.cfg.VaultRoot, issues)
	if err != nil {
		return nil, err
	}

	b.setState(StatePluginInit)
	if err := b.manager.Initialize(ctx, writer.StagingDir(), issues); err != nil {
		return nil, err
	}

	b.setState(StateProcessingMedia)
	processor, _ := plugin.Lookup[plugin.ImageProcessor](b.manager, plugin.CapImageProcessor)
	mediaCfg := b.cfg.Media
	if mediaCfg.Workers <= 0 {
		mediaCfg.Workers = b.cfg.Workers
	}
	cache := media.NewCache()
	b.primeCache(cache)
	mediaStats, err := media.New(mediaCfg, processor).Process(
		ctx, b.cfg.VaultRoot, writer.StagingDir(), ingest.Media, cache, issues)
	if err != nil {
		return nil, err
	}

	b.setState(StateComputingEmbeddings)
	textEmbedder, _ := plugin.Lookup[plugin.TextEmbedder](b.manager, plugin.CapTextEmbedder)
	imageEmbedder, _ := plugin.Lookup[plugin.ImageEmbedder](b.manager, plugin.CapImageEmbedder)
	embedCfg := b.cfg.Embedding
	if embedCfg.Workers <= 0 {
		embedCfg.Workers = b.cfg.Workers
	}
	embedPipeline := embedding.New(embedCfg)
	textEmbedded, err := embedPipeline.EmbedDocuments(ctx, ingest.Documents, textEmbedder, issues)
	if err != nil {
		return nil, err
	}
	mediaEmbedded, err := embedPipeline.EmbedMedia(ctx, b.cfg.VaultRoot, ingest.Media, imageEmbedder, issues)
	if err != nil {
		return nil, err
	}

	b.setState(StateComputingSimilarity)
	var simMap *types.SimilarityMap
	if sim, ok := plugin.Lookup[plugin.Similarity](b.manager, plugin.CapSimilarity); ok {
		simMap, err = sim.GenerateMap(ctx, ingest.Documents)
		if err != nil {
			return nil, err
		}
	}

	b.setState(StateBuildingDatabase)
	if db, ok := plugin.Lookup[plugin.Database](b.manager, plugin.CapDatabase); ok {
		if textEmbedder == nil {
			issues.Append(types.Issue{
				Severity: types.SeverityInfo,
				Stage:    types.StageDatabase,
				Message:  "no text embedder configured; database omits the vector index",
			})
		}
		_, err := db.Build(ctx, plugin.DatabaseRequest{
			Documents:    ingest.Documents,
			Media:        ingest.Media,
			Similarity:   simMap,
			ArtifactPath: filepath.Join(writer.StagingDir(), output.DatabaseFile),
			VectorIndex:  textEmbedder != nil,
		})
		if err != nil {
			return nil, err
		}
	}

	b.setState(StateWritingManifest)
	if err := b.writeArtifacts(writer, ingest, simMap, textEmbedder != nil, imageEmbedder != nil); err != nil {
		return nil, err
	}
	if err := writer.WriteJSON(output.IssuesFile, issues.Sorted()); err != nil {
		return nil, err
	}

	if issues.HasFatal() {
		return nil, fmt.Errorf("fatal issue recorded during build")
	}
	if b.cfg.Strict && issues.Len() > 0 {
		return nil, fmt.Errorf("strict mode: %d issue(s) recorded", issues.Len())
	}

	entries, err := writer.CollectEntries()
	if err != nil {
		return nil, err
	}

	manifest := &types.Manifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Stats: types.BuildStats{
			Documents:  len(ingest.Documents),
			Media:      len(ingest.Media),
			Variants:   int(mediaStats.Generated + mediaStats.Cached + mediaStats.Copied),
			Embeddings: textEmbedded + mediaEmbedded,
			Pairs:      pairCount(simMap),
			Issues:     issues.Len(),
			Duration:   time.Since(start),
		},
		Entries: entries,
	}
	if err := writer.WriteManifest(manifest); err != nil {
		return nil, err
	}
	if err := writer.Commit(); err != nil {
		return nil, err
	}

	b.setState(StateDone)
	return &types.BuildResult{
		Success:  true,
		Manifest: manifest,
		Issues:   issues.Sorted(),
	}, nil
}

// writeArtifacts stages the JSON artifact set. Embedding and similarity
// files exist only when the corresponding capability was configured.
func (b *Builder) writeArtifacts(writer *output.Writer, ingest *vault.Result, simMap *types.SimilarityMap, hasText, hasImage bool) error {
	docs := make([]*types.Document, len(ingest.Documents))
	copy(docs, ingest.Documents)
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	if err := writer.WriteJSON(output.DocumentsFile, docs); err != nil {
		return err
	}

	paths := map[string]map[string]types.Hash{
		"paths": ingest.Index.PathMap(),
		"slugs": ingest.Index.SlugMap(),
	}
	if err := writer.WriteJSON(output.PathsFile, paths); err != nil {
		return err
	}

	assets := make([]*types.MediaAsset, len(ingest.Media))
	copy(assets, ingest.Media)
	sort.Slice(assets, func(i, j int) bool { return assets[i].OriginalPath < assets[j].OriginalPath })
	if err := writer.WriteJSON(output.MediaFile, assets); err != nil {
		return err
	}

	if hasText {
		vectors := make([]*types.EmbeddingVector, 0, len(docs))
		for _, doc := range docs {
			if doc.Embedding != nil {
				vectors = append(vectors, doc.Embedding)
			}
		}
		if err := writer.WriteJSON(output.TextEmbeddingsFile, vectors); err != nil {
			return err
		}
	}
	if hasImage {
		vectors := make([]*types.EmbeddingVector, 0, len(assets))
		for _, asset := range assets {
			if asset.Embedding != nil {
				vectors = append(vectors, asset.Embedding)
			}
		}
		if err := writer.WriteJSON(output.MediaEmbeddingsFile, vectors); err != nil {
			return err
		}
	}
	if simMap != nil {
		if err := writer.WriteJSON(output.SimilarityFile, simMap); err != nil {
			return err
		}
	}
	return nil
}

// primeCache loads variants from the previously published build so unchanged
// media is copied forward instead of regenerated.
func (b *Builder) primeCache(cache *media.Cache) {
	manifest, err := output.ReadManifest(b.cfg.OutputRoot)
	if err != nil || manifest == nil {
		return
	}

	data, err := os.ReadFile(filepath.Join(b.cfg.OutputRoot, output.MediaFile))
	if err != nil {
		return
	}
	var assets []*types.MediaAsset
	if err := json.Unmarshal(data, &assets); err != nil {
		return
	}

	for _, asset := range assets {
		for _, v := range asset.Variants {
			src := filepath.Join(b.cfg.OutputRoot, filepath.FromSlash(v.Path))
			if _, err := os.Stat(src); err != nil {
				continue
			}
			cache.Prime(asset.Hash, v, src)
		}
	}
}

func pairCount(m *types.SimilarityMap) int {
	if m == nil {
		return 0
	}
	return len(m.Pairs)
}

func failedResult(issues *types.Ledger) *types.BuildResult {
	return &types.BuildResult{Success: false, Issues: issues.Sorted()}
}
