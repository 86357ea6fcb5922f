package vault

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// Index maps path and slug forms to document hashes. It is built during the
// first ingest pass and read-only during link resolution.
type Index struct {
	byPath map[string]types.Hash
	bySlug map[string]types.Hash
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byPath: make(map[string]types.Hash),
		bySlug: make(map[string]types.Hash),
	}
}

// Add registers a document under its path and slug.
func (ix *Index) Add(doc *types.Document) {
	ix.byPath[doc.Path] = doc.Hash
	ix.bySlug[doc.Slug] = doc.Hash
}

// Resolve maps a link target to a document hash. Targets may be slugs,
// vault-relative paths with or without .md, or bare note names.
func (ix *Index) Resolve(target, fromDir string) (types.Hash, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return types.Hash{}, false
	}
	// External links never resolve.
	if u, err := url.Parse(target); err == nil && u.Scheme != "" {
		return types.Hash{}, false
	}
	// Drop fragments: [[note#section]] points at the note.
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
		if target == "" {
			return types.Hash{}, false
		}
	}

	candidates := []string{
		strings.ToLower(strings.TrimSuffix(target, ".md")),
		slugifyTarget(path.Join(fromDir, target)),
	}
	for _, c := range candidates {
		if h, ok := ix.bySlug[c]; ok {
			return h, true
		}
	}
	if h, ok := ix.byPath[path.Join(fromDir, target)]; ok {
		return h, true
	}

	// Bare note name: match any document whose slug ends in /name. Ties
	// between same-named notes in different folders resolve to the
	// lexicographically smallest slug, never to map iteration order.
	name := strings.ToLower(strings.TrimSuffix(path.Base(target), ".md"))
	var bestSlug string
	var bestHash types.Hash
	found := false
	for slug, h := range ix.bySlug {
		if slug != name && !strings.HasSuffix(slug, "/"+name) {
			continue
		}
		if !found || slug < bestSlug {
			bestSlug, bestHash, found = slug, h, true
		}
	}
	return bestHash, found
}

func slugifyTarget(p string) string {
	return strings.ToLower(strings.TrimSuffix(path.Clean(p), ".md"))
}

// PathMap returns the path → hash index for the paths artifact.
func (ix *Index) PathMap() map[string]types.Hash {
	out := make(map[string]types.Hash, len(ix.byPath))
	for k, v := range ix.byPath {
		out[k] = v
	}
	return out
}

// SlugMap returns the slug → hash index for the paths artifact.
func (ix *Index) SlugMap() map[string]types.Hash {
	out := make(map[string]types.Hash, len(ix.bySlug))
	for k, v := range ix.bySlug {
		out[k] = v
	}
	return out
}

// resolveLinks is the second ingest pass: it scans each body for wikilinks
// and markdown links, resolves them through the index, and fills
// OutgoingLinks. Backlinks are then derived by inverting the link set.
func resolveLinks(docs []*types.Document, ix *Index) {
	for _, doc := range docs {
		fromDir := path.Dir(doc.Path)
		seen := make(map[types.Hash]bool)

		for _, match := range wikiLinkRe.FindAllStringSubmatch(doc.Body, -1) {
			if h, ok := ix.Resolve(match[1], fromDir); ok && h != doc.Hash {
				seen[h] = true
			}
		}
		for _, match := range mdLinkRe.FindAllStringSubmatch(doc.Body, -1) {
			if h, ok := ix.Resolve(match[2], fromDir); ok && h != doc.Hash {
				seen[h] = true
			}
		}

		doc.OutgoingLinks = sortedHashes(seen)
	}

	back := make(map[types.Hash]map[types.Hash]bool)
	for _, doc := range docs {
		for _, target := range doc.OutgoingLinks {
			if back[target] == nil {
				back[target] = make(map[types.Hash]bool)
			}
			back[target][doc.Hash] = true
		}
	}
	for _, doc := range docs {
		doc.Backlinks = sortedHashes(back[doc.Hash])
	}
}

func sortedHashes(set map[types.Hash]bool) []types.Hash {
	if len(set) == 0 {
		return nil
	}
	out := make([]types.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
