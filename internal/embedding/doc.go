// Package embedding computes embedding vectors for documents and media.
//
// Both embedders are optional plugins. When no text embedder is configured
// the document stage is skipped entirely and documents carry no embedding;
// the same holds for media and the image embedder. Absence is never an
// error.
//
// Text embedding is batched: documents are grouped into provider-sized
// batches dispatched across a bounded worker pool. Results are cached in an
// in-memory LRU keyed by content hash and model, so repeated content embeds
// once. Provider calls retry with exponential backoff; an item that still
// fails is recorded as a recoverable issue and shipped without a vector.
package embedding
