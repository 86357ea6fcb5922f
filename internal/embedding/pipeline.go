package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// Batch limits, matching common provider request caps.
const (
	DefaultBatchSize = 50
	DefaultCacheSize = 10000
)

// Config contains configuration for the embedding pipeline.
type Config struct {
	Workers   int
	BatchSize int
	CacheSize int
}

// Pipeline attaches embedding vectors to documents and media assets.
type Pipeline struct {
	workers   int
	batchSize int
	cache     *lru.Cache[string, []float32]
	retry     RetryConfig
}

// New creates an embedding pipeline with an LRU vector cache.
func New(cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Pipeline{
		workers:   workers,
		batchSize: batchSize,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}
}

// cacheKey keys vectors by owner content and model, so the same bytes never
// embed twice under one model.
func cacheKey(hash types.Hash, model string) string {
	return hash.String() + ":" + model
}

// EmbedDocuments computes one vector per document through the text embedder.
// A nil embedder skips the stage. Per-item failures record an issue and
// leave the document without an embedding; they never abort the stage.
// It returns the number of vectors attached.
func (p *Pipeline) EmbedDocuments(ctx context.Context, docs []*types.Document, embedder plugin.TextEmbedder, issues *types.Ledger) (int, error) {
	if embedder == nil {
		return 0, nil
	}
	model := embedder.Model()

	// Partition into batches up front; workers own disjoint slices, so the
	// only shared state is the cache and the issue ledger.
	var batches [][]*types.Document
	for i := 0; i < len(docs); i += p.batchSize {
		end := min(i+p.batchSize, len(docs))
		batches = append(batches, docs[i:end])
	}

	var attached int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := p.embedBatch(gctx, batch, embedder, model, issues)
			if err != nil {
				return err
			}
			atomic.AddInt32(&attached, int32(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(attached), nil
}

// embedBatch fills embeddings for one batch, resolving cache hits first and
// falling back to per-item calls when the batch call fails.
func (p *Pipeline) embedBatch(ctx context.Context, batch []*types.Document, embedder plugin.TextEmbedder, model string, issues *types.Ledger) (int, error) {
	attached := 0
	var pending []*types.Document
	for _, doc := range batch {
		if doc.PlainText == "" {
			continue // nothing to embed; recorded skip, not an issue
		}
		if vec, ok := p.cache.Get(cacheKey(doc.Hash, model)); ok {
			doc.Embedding = vector(doc.Hash, model, vec)
			attached++
			continue
		}
		pending = append(pending, doc)
	}
	if len(pending) == 0 {
		return attached, nil
	}

	texts := make([]string, len(pending))
	for i, doc := range pending {
		texts[i] = doc.PlainText
	}

	vecs, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		return embedder.BatchEmbed(ctx, texts)
	})
	if err == nil && len(vecs) != len(pending) {
		err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(pending))
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		// Batch failed: isolate the failure per item.
		return attached + p.embedSingly(ctx, pending, embedder, model, issues), nil
	}

	for i, doc := range pending {
		p.cache.Add(cacheKey(doc.Hash, model), vecs[i])
		doc.Embedding = vector(doc.Hash, model, vecs[i])
		attached++
	}
	return attached, nil
}

// embedSingly retries each document on its own so one poisoned input does
// not discard the rest of the batch.
func (p *Pipeline) embedSingly(ctx context.Context, docs []*types.Document, embedder plugin.TextEmbedder, model string, issues *types.Ledger) int {
	attached := 0
	for _, doc := range docs {
		vec, err := retryWithBackoff(ctx, p.retry, func() ([]float32, error) {
			return embedder.Embed(ctx, doc.PlainText)
		})
		if err != nil {
			if ctx.Err() != nil {
				return attached
			}
			issues.Append(types.Issue{
				Severity: types.SeverityRecoverable,
				Stage:    types.StageEmbedding,
				Subject:  doc.Hash,
				Path:     doc.Path,
				Message:  fmt.Sprintf("text embedding failed: %v", err),
			})
			continue
		}
		p.cache.Add(cacheKey(doc.Hash, model), vec)
		doc.Embedding = vector(doc.Hash, model, vec)
		attached++
	}
	return attached
}

// EmbedMedia computes one vector per media asset through the image
// embedder. A nil embedder skips the stage.
func (p *Pipeline) EmbedMedia(ctx context.Context, vaultRoot string, assets []*types.MediaAsset, embedder plugin.ImageEmbedder, issues *types.Ledger) (int, error) {
	if embedder == nil {
		return 0, nil
	}
	model := embedder.Model()

	var attached int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, asset := range assets {
		asset := asset
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if vec, ok := p.cache.Get(cacheKey(asset.Hash, model)); ok {
				asset.Embedding = vector(asset.Hash, model, vec)
				atomic.AddInt32(&attached, 1)
				return nil
			}
			path := filepath.Join(vaultRoot, filepath.FromSlash(asset.OriginalPath))
			vec, err := retryWithBackoff(gctx, p.retry, func() ([]float32, error) {
				return embedder.EmbedFile(gctx, path)
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				issues.Append(types.Issue{
					Severity: types.SeverityRecoverable,
					Stage:    types.StageEmbedding,
					Subject:  asset.Hash,
					Path:     asset.OriginalPath,
					Message:  fmt.Sprintf("image embedding failed: %v", err),
				})
				return nil
			}
			p.cache.Add(cacheKey(asset.Hash, model), vec)
			asset.Embedding = vector(asset.Hash, model, vec)
			atomic.AddInt32(&attached, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(attached), nil
}

func vector(owner types.Hash, model string, values []float32) *types.EmbeddingVector {
	return &types.EmbeddingVector{
		OwnerHash:  owner,
		Model:      model,
		Dimensions: len(values),
		Values:     values,
	}
}
