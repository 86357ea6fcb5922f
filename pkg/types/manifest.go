package types

import (
	"sort"
	"time"
)

// ManifestEntry is one artifact in the build manifest.
type ManifestEntry struct {
	Path string `json:"path"`
	Hash Hash   `json:"hash"`
	Size int64  `json:"size"`
}

// BuildStats summarizes a completed run.
type BuildStats struct {
	Documents  int           `json:"documents"`
	Media      int           `json:"media"`
	Variants   int           `json:"variants"`
	Embeddings int           `json:"embeddings"`
	Pairs      int           `json:"pairs"`
	Issues     int           `json:"issues"`
	Duration   time.Duration `json:"duration"`
}

// Manifest is the authoritative listing of a published build. Its presence
// in the output root means the build succeeded; consumers never observe a
// partially written artifact set.
type Manifest struct {
	RunID     string          `json:"runId"`
	CreatedAt time.Time       `json:"createdAt"`
	Stats     BuildStats      `json:"stats"`
	Entries   []ManifestEntry `json:"entries"`
}

// Sort orders entries by hash, then path, for reproducible output.
func (m *Manifest) Sort() {
	sort.Slice(m.Entries, func(i, j int) bool {
		a, b := m.Entries[i], m.Entries[j]
		if a.Hash != b.Hash {
			return a.Hash.String() < b.Hash.String()
		}
		return a.Path < b.Path
	})
}

// Lookup returns the entry for path, if present.
func (m *Manifest) Lookup(path string) (ManifestEntry, bool) {
	for _, e := range m.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// BuildResult is the user-visible outcome of a run. A non-strict run can
// succeed with issues present; only a successful run carries a manifest.
type BuildResult struct {
	Success  bool      `json:"success"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Issues   []Issue   `json:"issues"`
}
