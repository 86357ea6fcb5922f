// Package similarity computes pairwise document similarity maps.
//
// The engine scores every pair of embedded documents with cosine
// similarity and derives a descending-sorted nearest-neighbor list per
// document. Zero-norm vectors are defined to have similarity 0 with every
// other vector, so no pair ever divides by zero. Symmetry is a hard
// invariant: sim(a,b) == sim(b,a), and edges are stored once in canonical
// order.
//
// The all-pairs computation is O(n²) over embedded documents; rows are
// chunked across a bounded worker pool.
//
// The package also exposes the engine as the "similarity" plugin, which
// hard-requires the textEmbedder capability: the plugin manager rejects a
// configuration with similarity but no text embedder before any ingest
// work runs.
package similarity
