package plugin

import (
	"context"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// Capability names. Each name identifies one pluggable capability; at most
// one plugin per name may be registered.
const (
	CapImageProcessor = "imageProcessor"
	CapTextEmbedder   = "textEmbedder"
	CapImageEmbedder  = "imageEmbedder"
	CapSimilarity     = "similarity"
	CapDatabase       = "database"
)

// State is a plugin's lifecycle state.
type State int

const (
	StateRegistered State = iota
	StateResolved
	StateInitialized
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateResolved:
		return "resolved"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Plugin is the contract every capability implementation satisfies.
type Plugin interface {
	// Name returns the capability key this plugin provides.
	Name() string

	// Requires returns hard dependencies: capabilities that must be
	// configured for this plugin to function at all.
	Requires() []string

	// Optional returns soft dependencies: capabilities used when present
	// but whose absence only degrades functionality.
	Optional() []string

	// Init is invoked once per build run, strictly after every
	// dependency's Init. Returning an error marks the plugin Failed.
	Init(ctx context.Context, ic *InitContext) error
}

// InitContext is passed to every plugin's Init hook. The plugin registry it
// exposes is read-only after the initialize phase.
type InitContext struct {
	manager *Manager

	// OutputRoot is the staging directory plugins may write under.
	OutputRoot string

	// Issues is the run's issue sink.
	Issues *types.Ledger
}

// Plugin returns the initialized plugin for name, or nil when it is not
// configured or failed during init.
func (ic *InitContext) Plugin(name string) Plugin {
	if ic.manager == nil {
		return nil
	}
	p, ok := ic.manager.Get(name)
	if !ok {
		return nil
	}
	return p
}

// ImageMetadata describes a decodable image.
type ImageMetadata struct {
	Width  int
	Height int
	Format string
}

// ProcessOptions selects the output geometry and encoding for one variant.
// A zero Width or Height means "derive from the source aspect ratio".
type ProcessOptions struct {
	Width   int
	Height  int
	Format  string
	Quality int
}

// ImageProcessor resizes and transcodes media files.
type ImageProcessor interface {
	Plugin

	// CanProcess reports whether the processor handles the file at path.
	CanProcess(path string) bool

	// Metadata decodes the source dimensions and format.
	Metadata(path string) (ImageMetadata, error)

	// Process writes one variant of input to output.
	Process(ctx context.Context, input, output string, opts ProcessOptions) (types.Variant, error)

	// Copy writes input verbatim to output.
	Copy(ctx context.Context, input, output string) (types.Variant, error)
}

// TextEmbedder computes embedding vectors for document text.
type TextEmbedder interface {
	Plugin

	Model() string
	Dimensions() int

	// Embed computes one vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed computes vectors for several texts in one call. The
	// result is positionally aligned with the input.
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageEmbedder computes embedding vectors for media files.
type ImageEmbedder interface {
	Plugin

	Model() string
	Dimensions() int

	EmbedFile(ctx context.Context, path string) ([]float32, error)
	EmbedBuffer(ctx context.Context, data []byte, mimeType string) ([]float32, error)
}

// Similarity computes pairwise document similarity. Implementations hard-
// require the textEmbedder capability.
type Similarity interface {
	Plugin

	// ComputeSimilarity scores a single vector pair in [-1, 1].
	ComputeSimilarity(a, b []float32) float64

	// GenerateMap computes all pairwise scores and per-document neighbor
	// lists over the documents that carry an embedding.
	GenerateMap(ctx context.Context, docs []*types.Document) (*types.SimilarityMap, error)
}

// DatabaseRequest carries the inputs for database assembly.
type DatabaseRequest struct {
	Documents []*types.Document
	Media     []*types.MediaAsset

	// Similarity is the precomputed neighbor map, nil when the similarity
	// capability is not configured.
	Similarity *types.SimilarityMap

	// ArtifactPath is the final location of the database file.
	ArtifactPath string

	// VectorIndex is true when a text embedder was configured and the
	// schema should include embedding tables.
	VectorIndex bool
}

// DatabaseResult describes the assembled database artifact.
type DatabaseResult struct {
	ArtifactPath string
	Tables       []string
	RowCounts    map[string]int64
}

// Database assembles the queryable database artifact. It optionally uses
// the textEmbedder capability: without one the schema simply omits the
// vector index.
type Database interface {
	Plugin

	Build(ctx context.Context, req DatabaseRequest) (DatabaseResult, error)
}
