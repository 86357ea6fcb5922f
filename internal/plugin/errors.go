package plugin

import (
	"fmt"
	"strings"
)

// DuplicateCapabilityError is returned by Register when a capability name
// is already taken.
type DuplicateCapabilityError struct {
	Name string
}

func (e *DuplicateCapabilityError) Error() string {
	return fmt.Sprintf("duplicate capability %q", e.Name)
}

// MissingDependencyError is returned by Resolve when a plugin hard-requires
// a capability absent from the configured set. It is fatal and detected
// before any build work starts.
type MissingDependencyError struct {
	Plugin     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("plugin %q requires capability %q which is not configured", e.Plugin, e.Dependency)
}

// CyclicDependencyError is returned by Resolve when the dependency graph
// contains a cycle. It is fatal and detected before any build work starts.
type CyclicDependencyError struct {
	Members []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic plugin dependency among %s", strings.Join(e.Members, ", "))
}

// DependencyFailedError is returned by Initialize when a plugin's hard
// dependency failed its own init. The dependency was validated as present
// at resolve time, so its loss is a fatal build error.
type DependencyFailedError struct {
	Plugin     string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("plugin %q depends on %q which failed to initialize", e.Plugin, e.Dependency)
}
