// Package builder orchestrates a full build run: plugin resolution, vault
// ingest, media processing, embedding, similarity, database assembly, and
// the final atomic publish. Stages run in a fixed order; each one reads the
// data model produced by the stages before it and records per-item failures
// in the run's issue ledger instead of aborting.
package builder
