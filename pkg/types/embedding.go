package types

import "errors"

// EmbeddingVector is one embedding produced for a document or media asset.
// Exactly one vector exists per (owner, embedder model) pair.
type EmbeddingVector struct {
	OwnerHash  Hash      `json:"ownerHash"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Values     []float32 `json:"values"`
}

// Validate checks vector shape consistency.
func (e *EmbeddingVector) Validate() error {
	if e.OwnerHash.IsZero() {
		return errors.New("embedding owner hash must be set")
	}
	if e.Model == "" {
		return errors.New("embedding model cannot be empty")
	}
	if e.Dimensions != len(e.Values) {
		return errors.New("embedding dimensions do not match value count")
	}
	return nil
}
