package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// Dir is the media directory inside the output root.
const Dir = "media"

// VariantSpec requests one resized output.
type VariantSpec struct {
	Width  int    `yaml:"width"`
	Suffix string `yaml:"suffix"`
}

// DefaultVariants is the variant set used when none is configured.
var DefaultVariants = []VariantSpec{
	{Width: 640, Suffix: "sm"},
	{Width: 1280, Suffix: "md"},
	{Width: 1920, Suffix: "lg"},
}

// Config contains configuration for the media pipeline.
type Config struct {
	Workers  int
	Variants []VariantSpec
	Format   string // target format for processed variants (default: webp)
	Quality  int
}

// Stats counts the work a pipeline run performed.
type Stats struct {
	Generated int32
	Cached    int32
	Copied    int32
}

// Pipeline generates media variants through an optional ImageProcessor.
type Pipeline struct {
	workers   int
	variants  []VariantSpec
	format    string
	quality   int
	processor plugin.ImageProcessor // nil when not configured
}

// New creates a media pipeline. A nil processor makes every asset fall back
// to verbatim copy.
func New(cfg Config, processor plugin.ImageProcessor) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	variants := cfg.Variants
	if len(variants) == 0 {
		variants = DefaultVariants
	}
	format := cfg.Format
	if format == "" {
		format = "webp"
	}
	quality := cfg.Quality
	if quality <= 0 {
		quality = 80
	}
	return &Pipeline{
		workers:   workers,
		variants:  variants,
		format:    format,
		quality:   quality,
		processor: processor,
	}
}

// Process generates variants for every asset into stagingRoot/media.
// Work is dispatched per unique content hash: assets with identical bytes
// share one generated variant set, so the second asset is always a cache
// hit. Per-item failures record an issue and fall back to copy.
func (p *Pipeline) Process(ctx context.Context, vaultRoot, stagingRoot string, assets []*types.MediaAsset, cache *Cache, issues *types.Ledger) (Stats, error) {
	if err := os.MkdirAll(filepath.Join(stagingRoot, Dir), 0o755); err != nil {
		return Stats{}, fmt.Errorf("failed to create media dir: %w", err)
	}

	// Group by hash so generation runs once per distinct content.
	byHash := make(map[types.Hash][]*types.MediaAsset)
	order := make([]types.Hash, 0, len(assets))
	for _, asset := range assets {
		if _, seen := byHash[asset.Hash]; !seen {
			order = append(order, asset.Hash)
		}
		byHash[asset.Hash] = append(byHash[asset.Hash], asset)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	var stats Stats
	var mu sync.Mutex // guards Variants writes on shared assets

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, hash := range order {
		group := byHash[hash]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Representative source: any file with these bytes.
			input := filepath.Join(vaultRoot, filepath.FromSlash(group[0].OriginalPath))
			variants := p.processOne(gctx, input, group[0], stagingRoot, cache, issues, &stats)

			mu.Lock()
			for _, asset := range group {
				for _, v := range variants {
					asset.AddVariant(v)
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// processOne produces the variant set for one distinct content hash.
func (p *Pipeline) processOne(ctx context.Context, input string, asset *types.MediaAsset, stagingRoot string, cache *Cache, issues *types.Ledger, stats *Stats) []types.Variant {
	if p.processor == nil || !p.processor.CanProcess(input) {
		return p.copyFallback(ctx, input, asset, stagingRoot, cache, issues, stats)
	}

	meta, err := p.processor.Metadata(input)
	if err != nil {
		issues.Append(types.Issue{
			Severity: types.SeverityRecoverable,
			Stage:    types.StageMedia,
			Subject:  asset.Hash,
			Path:     asset.OriginalPath,
			Message:  fmt.Sprintf("unreadable image metadata, falling back to copy: %v", err),
		})
		return p.copyFallback(ctx, input, asset, stagingRoot, cache, issues, stats)
	}

	var out []types.Variant
	emitted := make(map[int]bool)
	for _, spec := range p.variants {
		// Never upscale: clamp to the source width.
		width := spec.Width
		if meta.Width > 0 && width > meta.Width {
			width = meta.Width
		}
		if emitted[width] {
			continue
		}
		emitted[width] = true

		label := spec.Suffix
		if label == "" {
			label = fmt.Sprintf("%dw", width)
		}
		relPath := fmt.Sprintf("%s/%s-%dw.%s", Dir, asset.Hash, width, p.format)

		if entry, ok := cache.get(asset.Hash, width, p.format); ok {
			v, err := p.materializeCached(entry, stagingRoot, relPath)
			if err == nil {
				v.Label = label
				out = append(out, v)
				atomic.AddInt32(&stats.Cached, 1)
				continue
			}
			// Stale cache entry: fall through and regenerate.
		}

		v, err := p.processor.Process(ctx, input, filepath.Join(stagingRoot, filepath.FromSlash(relPath)), plugin.ProcessOptions{
			Width:   width,
			Format:  p.format,
			Quality: p.quality,
		})
		if err != nil {
			issues.Append(types.Issue{
				Severity: types.SeverityRecoverable,
				Stage:    types.StageMedia,
				Subject:  asset.Hash,
				Path:     asset.OriginalPath,
				Message:  fmt.Sprintf("variant %dw failed, falling back to copy: %v", width, err),
			})
			return p.copyFallback(ctx, input, asset, stagingRoot, cache, issues, stats)
		}
		v.Label = label
		v.Path = relPath
		v.Format = p.format
		if v.Width == 0 {
			v.Width = width
		}
		cache.put(asset.Hash, v)
		out = append(out, v)
		atomic.AddInt32(&stats.Generated, 1)
	}
	return out
}

// materializeCached ensures a cached variant's file exists in staging.
func (p *Pipeline) materializeCached(entry cacheEntry, stagingRoot, relPath string) (types.Variant, error) {
	v := entry.variant
	v.Cached = true
	v.Path = relPath
	dst := filepath.Join(stagingRoot, filepath.FromSlash(relPath))
	if entry.src == "" {
		// Written by this run already.
		return v, nil
	}
	if err := copyFile(entry.src, dst); err != nil {
		return types.Variant{}, err
	}
	return v, nil
}

// copyFallback writes the source verbatim into staging as the only variant.
func (p *Pipeline) copyFallback(ctx context.Context, input string, asset *types.MediaAsset, stagingRoot string, cache *Cache, issues *types.Ledger, stats *Stats) []types.Variant {
	ext := strings.ToLower(filepath.Ext(asset.OriginalPath))
	format := strings.TrimPrefix(ext, ".")
	relPath := fmt.Sprintf("%s/%s%s", Dir, asset.Hash, ext)

	if entry, ok := cache.get(asset.Hash, 0, format); ok {
		if v, err := p.materializeCached(entry, stagingRoot, relPath); err == nil {
			atomic.AddInt32(&stats.Cached, 1)
			return []types.Variant{v}
		}
	}

	dst := filepath.Join(stagingRoot, filepath.FromSlash(relPath))
	var v types.Variant
	var err error
	if p.processor != nil {
		v, err = p.processor.Copy(ctx, input, dst)
	} else {
		err = copyFile(input, dst)
		if err == nil {
			if info, statErr := os.Stat(dst); statErr == nil {
				v = types.Variant{Size: info.Size()}
			}
		}
	}
	if err != nil {
		issues.Append(types.Issue{
			Severity: types.SeverityRecoverable,
			Stage:    types.StageMedia,
			Subject:  asset.Hash,
			Path:     asset.OriginalPath,
			Message:  fmt.Sprintf("copy failed, asset omitted: %v", err),
		})
		return nil
	}

	v.Label = "original"
	v.Path = relPath
	v.Format = format
	v.Copied = true
	cache.put(asset.Hash, v)
	atomic.AddInt32(&stats.Copied, 1)
	return []types.Variant{v}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
