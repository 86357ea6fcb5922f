package types

import "errors"

// Variant describes one generated output for a media asset, keyed in
// MediaAsset.Variants by its label (for example "800w" or "original").
type Variant struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Format string `json:"format"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Size   int64  `json:"size"`

	// Copied is true when the variant is a verbatim copy of the source,
	// either because no image processor was configured or because the
	// processor could not handle the file.
	Copied bool `json:"copied,omitempty"`

	// Cached is true when the variant was reused from a previous build
	// instead of being regenerated.
	Cached bool `json:"cached,omitempty"`
}

// MediaAsset tracks one non-markdown file in the vault and the variants
// generated for it. Variants are added incrementally by the media pipeline.
type MediaAsset struct {
	Hash         Hash               `json:"hash"`
	OriginalPath string             `json:"originalPath"`
	MimeType     string             `json:"mimeType"`
	Variants     map[string]Variant `json:"variants"`

	// Embedding is attached when an image embedder is configured.
	Embedding *EmbeddingVector `json:"embedding,omitempty"`
}

// AddVariant records a generated variant under its label.
func (m *MediaAsset) AddVariant(v Variant) {
	if m.Variants == nil {
		m.Variants = make(map[string]Variant)
	}
	m.Variants[v.Label] = v
}

// Validate checks the invariants every media asset must satisfy.
func (m *MediaAsset) Validate() error {
	if m.Hash.IsZero() {
		return errors.New("media hash must be computed")
	}
	if m.OriginalPath == "" {
		return errors.New("media path cannot be empty")
	}
	return nil
}
