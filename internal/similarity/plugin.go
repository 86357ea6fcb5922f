package similarity

import (
	"context"

	"github.com/iplanwebsites/repomd/internal/plugin"
	"github.com/iplanwebsites/repomd/pkg/types"
)

// Ensure Plugin satisfies the capability contract.
var _ plugin.Similarity = (*Plugin)(nil)

// Plugin exposes the engine as the "similarity" capability. It hard-
// requires textEmbedder: resolving a configuration without one fails
// before any build work starts, so the engine can assume embeddings exist
// for every document that carries one.
type Plugin struct {
	engine *Engine
}

// NewPlugin creates the similarity plugin.
func NewPlugin(cfg Config) *Plugin {
	return &Plugin{engine: NewEngine(cfg)}
}

// Name returns the capability key.
func (p *Plugin) Name() string { return plugin.CapSimilarity }

// Requires returns the hard dependency on the text embedder.
func (p *Plugin) Requires() []string { return []string{plugin.CapTextEmbedder} }

// Optional returns no soft dependencies.
func (p *Plugin) Optional() []string { return nil }

// Init is a no-op; the engine is pure computation.
func (p *Plugin) Init(context.Context, *plugin.InitContext) error { return nil }

// ComputeSimilarity scores one vector pair.
func (p *Plugin) ComputeSimilarity(a, b []float32) float64 {
	return Cosine(a, b)
}

// GenerateMap computes the pairwise similarity map.
func (p *Plugin) GenerateMap(ctx context.Context, docs []*types.Document) (*types.SimilarityMap, error) {
	return p.engine.GenerateMap(ctx, docs)
}
