// Package output stages build artifacts and publishes them atomically. All
// writes during a run land in a hidden staging directory next to the output
// root; Commit swaps the staged tree into place in one rename, so consumers
// either see the previous complete build or the new one, never a mix. The
// manifest is written last and doubles as the success marker.
package output
