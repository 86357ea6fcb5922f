package builder

// State is the orchestrator's current phase. It advances monotonically
// through the pipeline; Failed is reachable from any phase.
type State int

const (
	StatePending State = iota
	StateIngesting
	StatePluginInit
	StateProcessingMedia
	StateComputingEmbeddings
	StateComputingSimilarity
	StateBuildingDatabase
	StateWritingManifest
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateIngesting:
		return "ingesting"
	case StatePluginInit:
		return "plugin-init"
	case StateProcessingMedia:
		return "processing-media"
	case StateComputingEmbeddings:
		return "computing-embeddings"
	case StateComputingSimilarity:
		return "computing-similarity"
	case StateBuildingDatabase:
		return "building-database"
	case StateWritingManifest:
		return "writing-manifest"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
