package similarity

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// DefaultMaxNeighbors caps each document's neighbor list.
const DefaultMaxNeighbors = 20

// Config contains configuration for the similarity engine.
type Config struct {
	Workers int

	// MaxNeighbors caps neighbor list length; 0 means DefaultMaxNeighbors,
	// negative means unlimited.
	MaxNeighbors int
}

// Engine computes cosine similarity maps.
type Engine struct {
	workers      int
	maxNeighbors int
}

// NewEngine creates a similarity engine.
func NewEngine(cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxNeighbors := cfg.MaxNeighbors
	if maxNeighbors == 0 {
		maxNeighbors = DefaultMaxNeighbors
	}
	return &Engine{workers: workers, maxNeighbors: maxNeighbors}
}

// Cosine computes dot(a,b) / (‖a‖·‖b‖). Mismatched dimensions and
// zero-norm vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// GenerateMap computes all pairwise scores and neighbor lists over the
// documents that carry an embedding. Documents without one are ignored;
// the caller guarantees the embedding stage has fully completed.
func (e *Engine) GenerateMap(ctx context.Context, docs []*types.Document) (*types.SimilarityMap, error) {
	// Byte-identical documents share a hash and therefore one map entry;
	// keep a single representative so no document pairs with itself.
	seen := make(map[types.Hash]bool, len(docs))
	embedded := make([]*types.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Embedding == nil || seen[doc.Hash] {
			continue
		}
		seen[doc.Hash] = true
		embedded = append(embedded, doc)
	}
	// Deterministic pair order regardless of input order.
	sort.Slice(embedded, func(i, j int) bool {
		return embedded[i].Hash.String() < embedded[j].Hash.String()
	})

	result := &types.SimilarityMap{
		Neighbors: make(map[types.Hash][]types.Neighbor, len(embedded)),
	}
	if len(embedded) > 0 {
		result.Model = embedded[0].Embedding.Model
	}
	if len(embedded) < 2 {
		for _, doc := range embedded {
			result.Neighbors[doc.Hash] = nil
		}
		return result, nil
	}

	// Row i scores pairs (i, j>i). Rows are independent; each worker
	// appends to its own slice and merges under the mutex once.
	var mu sync.Mutex
	scores := make([][]float64, len(embedded))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range embedded {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := make([]float64, len(embedded)-i-1)
			for j := i + 1; j < len(embedded); j++ {
				row[j-i-1] = Cosine(embedded[i].Embedding.Values, embedded[j].Embedding.Values)
			}
			mu.Lock()
			scores[i] = row
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	neighborSets := make([][]types.Neighbor, len(embedded))
	for i := range embedded {
		for j := i + 1; j < len(embedded); j++ {
			score := scores[i][j-i-1]
			result.Pairs = append(result.Pairs, types.NewSimilarityEdge(embedded[i].Hash, embedded[j].Hash, score))
			neighborSets[i] = append(neighborSets[i], types.Neighbor{Hash: embedded[j].Hash, Score: score})
			neighborSets[j] = append(neighborSets[j], types.Neighbor{Hash: embedded[i].Hash, Score: score})
		}
	}

	for i, doc := range embedded {
		neighbors := neighborSets[i]
		sort.Slice(neighbors, func(a, b int) bool {
			if neighbors[a].Score != neighbors[b].Score {
				return neighbors[a].Score > neighbors[b].Score
			}
			return neighbors[a].Hash.String() < neighbors[b].Hash.String()
		})
		if e.maxNeighbors > 0 && len(neighbors) > e.maxNeighbors {
			neighbors = neighbors[:e.maxNeighbors]
		}
		result.Neighbors[doc.Hash] = neighbors
	}

	return result, nil
}
