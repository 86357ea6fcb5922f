package types

import (
	"sort"
	"sync"
)

// Severity classifies how an issue affects the run.
type Severity string

const (
	// SeverityInfo records a condition worth surfacing, such as vector
	// search being unavailable because no embedder was configured.
	SeverityInfo Severity = "info"

	// SeverityRecoverable marks a per-item failure: the item was skipped
	// or fell back, and the run continued.
	SeverityRecoverable Severity = "recoverable"

	// SeverityFatal marks a failure that aborted the run.
	SeverityFatal Severity = "fatal"
)

// Stage names the pipeline stage an issue was recorded in.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StagePluginInit Stage = "plugin-init"
	StageMedia      Stage = "media"
	StageEmbedding  Stage = "embedding"
	StageSimilarity Stage = "similarity"
	StageDatabase   Stage = "database"
	StageOutput     Stage = "output"
)

// Issue records one problem encountered during a build. Issues accumulate
// across the run and never abort it unless strict mode is set or the
// severity is fatal.
type Issue struct {
	Severity Severity `json:"severity"`
	Stage    Stage    `json:"stage"`
	Subject  Hash     `json:"subject,omitempty"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

// Ledger is an append-only issue collection safe for concurrent writers.
// It is the only cross-task shared mutable state in the pipeline.
type Ledger struct {
	mu     sync.Mutex
	issues []Issue
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records an issue.
func (l *Ledger) Append(issue Issue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issues = append(l.issues, issue)
}

// All returns a copy of the accumulated issues in append order.
func (l *Ledger) All() []Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Issue, len(l.issues))
	copy(out, l.issues)
	return out
}

// Sorted returns a copy of the issues ordered by stage, path, and
// message. Append order depends on worker scheduling, so anything
// persisted to an artifact goes through this instead of All.
func (l *Ledger) Sorted() []Issue {
	issues := l.All()
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Stage != issues[j].Stage {
			return issues[i].Stage < issues[j].Stage
		}
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		return issues[i].Message < issues[j].Message
	})
	return issues
}

// Len returns the number of recorded issues.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.issues)
}

// HasFatal reports whether any fatal issue was recorded.
func (l *Ledger) HasFatal() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, issue := range l.issues {
		if issue.Severity == SeverityFatal {
			return true
		}
	}
	return false
}
