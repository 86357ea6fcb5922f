// Package vault ingests a source tree of markdown documents and media.
//
// Ingest runs in two passes. The first pass walks the tree, hashes every
// file, parses each markdown file into frontmatter, body, rendered output
// and plain text, and builds a path/slug → hash index. The second pass
// re-scans document bodies to resolve internal links ([[wikilinks]] and
// relative markdown links) against that index, then derives backlinks by
// inverting the outgoing link set.
//
// Malformed frontmatter and unreadable files are recoverable: the file is
// skipped, an issue is recorded, and the run continues.
//
//	ing := vault.New(vault.Config{Workers: 8})
//	result, err := ing.Ingest(ctx, "/path/to/vault", ledger)
//	for _, doc := range result.Documents {
//	    fmt.Println(doc.Slug, doc.WordCount)
//	}
package vault
