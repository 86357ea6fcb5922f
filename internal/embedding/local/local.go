// Package local provides a deterministic, offline text embedder plugin.
//
// Vectors are derived from a SHA-256 projection of the input text and
// normalized to unit length. They carry no semantic signal, but they are
// stable across runs and machines, which keeps builds reproducible when no
// inference endpoint is configured and gives the similarity engine a
// well-defined input in tests.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/iplanwebsites/repomd/internal/plugin"
)

const (
	// ModelName identifies vectors produced by this embedder.
	ModelName = "local-hash-v1"

	// Dimension matches small sentence-transformer models.
	Dimension = 384
)

// Embedder is the local text embedding plugin.
type Embedder struct{}

// New creates a local embedder.
func New() *Embedder {
	return &Embedder{}
}

// Name returns the capability this plugin provides.
func (e *Embedder) Name() string { return plugin.CapTextEmbedder }

// Requires returns no hard dependencies.
func (e *Embedder) Requires() []string { return nil }

// Optional returns no soft dependencies.
func (e *Embedder) Optional() []string { return nil }

// Init is a no-op; the embedder has no resources to acquire.
func (e *Embedder) Init(context.Context, *plugin.InitContext) error { return nil }

// Model returns the model identifier.
func (e *Embedder) Model() string { return ModelName }

// Dimensions returns the vector dimension.
func (e *Embedder) Dimensions() int { return Dimension }

// Embed computes a deterministic unit vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Expand the digest into enough pseudo-random words by re-hashing
	// with a counter suffix.
	vec := make([]float32, Dimension)
	seed := sha256.Sum256([]byte(text))
	var block [32]byte
	for i := 0; i < Dimension; i++ {
		if i%8 == 0 {
			h := sha256.New()
			h.Write(seed[:])
			var counter [4]byte
			binary.BigEndian.PutUint32(counter[:], uint32(i/8))
			h.Write(counter[:])
			copy(block[:], h.Sum(nil))
		}
		word := binary.BigEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		vec[i] = (float32(word)/float32(1<<32))*2 - 1
	}

	// Normalize to unit length.
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// BatchEmbed computes vectors for each text in order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
