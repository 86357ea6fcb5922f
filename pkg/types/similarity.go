package types

import "errors"

// SimilarityEdge is the cosine similarity between an unordered pair of
// documents. Edges are stored canonically with A sorting before B, so
// sim(a,b) and sim(b,a) are the same edge.
type SimilarityEdge struct {
	A     Hash    `json:"a"`
	B     Hash    `json:"b"`
	Score float64 `json:"score"`
}

// NewSimilarityEdge returns the canonical form of the edge between a and b.
func NewSimilarityEdge(a, b Hash, score float64) SimilarityEdge {
	if b.String() < a.String() {
		a, b = b, a
	}
	return SimilarityEdge{A: a, B: b, Score: score}
}

// Validate checks the score range invariant.
func (e *SimilarityEdge) Validate() error {
	if e.Score < -1 || e.Score > 1 {
		return errors.New("similarity score must be in [-1, 1]")
	}
	if e.A == e.B {
		return errors.New("similarity edge cannot be a self pair")
	}
	return nil
}

// Neighbor is one entry in a document's nearest-neighbor list.
type Neighbor struct {
	Hash  Hash    `json:"hash"`
	Score float64 `json:"score"`
}

// SimilarityMap is the precomputed output of the similarity engine: every
// pairwise edge plus a descending-sorted neighbor list per document.
// A document never appears in its own neighbor list.
type SimilarityMap struct {
	Model     string              `json:"model"`
	Pairs     []SimilarityEdge    `json:"pairs"`
	Neighbors map[Hash][]Neighbor `json:"neighbors"`
}
