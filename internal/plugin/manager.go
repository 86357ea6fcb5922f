package plugin

import (
	"context"
	"fmt"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// Manager owns the plugin registry: registration, dependency resolution,
// ordered initialization, and lookup. The registry is write-once during
// Resolve/Initialize and read-only afterward, so lookups need no locking.
type Manager struct {
	plugins map[string]Plugin
	order   []string // registration order, the topological tie-breaker
	states  map[string]State

	resolved    []Plugin
	initialized bool
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		plugins: make(map[string]Plugin),
		states:  make(map[string]State),
	}
}

// Register adds a plugin instance. Registering two plugins under the same
// capability name returns a DuplicateCapabilityError.
func (m *Manager) Register(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin capability name cannot be empty")
	}
	if _, exists := m.plugins[name]; exists {
		return &DuplicateCapabilityError{Name: name}
	}
	m.plugins[name] = p
	m.order = append(m.order, name)
	m.states[name] = StateRegistered
	return nil
}

// Names returns the registered capability names in registration order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// State returns the lifecycle state of a capability.
func (m *Manager) State(name string) State {
	return m.states[name]
}

// Resolve validates the dependency graph and returns the plugins in
// deterministic initialization order: Kahn's algorithm over the edge set
// (dependency → dependent), ties broken by registration order.
//
// A hard dependency absent from the configured set fails with
// MissingDependencyError; a cycle fails with CyclicDependencyError. Both
// are detected here, before any processing begins.
func (m *Manager) Resolve() ([]Plugin, error) {
	// Hard dependencies must all be configured.
	for _, name := range m.order {
		for _, dep := range m.plugins[name].Requires() {
			if _, ok := m.plugins[dep]; !ok {
				return nil, &MissingDependencyError{Plugin: name, Dependency: dep}
			}
		}
	}

	// Soft dependencies only contribute edges when both ends exist.
	indegree := make(map[string]int, len(m.order))
	dependents := make(map[string][]string, len(m.order))
	for _, name := range m.order {
		indegree[name] = 0
	}
	for _, name := range m.order {
		p := m.plugins[name]
		deps := append([]string{}, p.Requires()...)
		for _, dep := range p.Optional() {
			if _, ok := m.plugins[dep]; ok {
				deps = append(deps, dep)
			}
		}
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
			indegree[name]++
		}
	}

	ordered := make([]Plugin, 0, len(m.order))
	done := make(map[string]bool, len(m.order))
	for len(ordered) < len(m.order) {
		// Pick the earliest-registered plugin with no unmet deps.
		next := ""
		for _, name := range m.order {
			if !done[name] && indegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			// Everything remaining sits on a cycle or downstream of one.
			var members []string
			for _, name := range m.order {
				if !done[name] {
					members = append(members, name)
				}
			}
			return nil, &CyclicDependencyError{Members: members}
		}
		done[next] = true
		ordered = append(ordered, m.plugins[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}

	for _, p := range ordered {
		m.states[p.Name()] = StateResolved
	}
	m.resolved = ordered
	return ordered, nil
}

// Initialize invokes each resolved plugin's Init hook strictly in resolved
// order. A plugin whose Init returns an error is marked Failed, recorded in
// the issue sink, and treated as absent for the rest of the run; a later
// plugin hard-requiring it aborts with DependencyFailedError.
func (m *Manager) Initialize(ctx context.Context, outputRoot string, issues *types.Ledger) error {
	if m.resolved == nil {
		return fmt.Errorf("initialize called before resolve")
	}

	ic := &InitContext{manager: m, OutputRoot: outputRoot, Issues: issues}
	for _, p := range m.resolved {
		name := p.Name()

		for _, dep := range p.Requires() {
			if m.states[dep] != StateInitialized {
				return &DependencyFailedError{Plugin: name, Dependency: dep}
			}
		}

		if err := p.Init(ctx, ic); err != nil {
			m.states[name] = StateFailed
			issues.Append(types.Issue{
				Severity: types.SeverityRecoverable,
				Stage:    types.StagePluginInit,
				Message:  fmt.Sprintf("plugin %s failed to initialize: %v", name, err),
			})
			continue
		}
		m.states[name] = StateInitialized
	}

	m.initialized = true
	return nil
}

// Get returns the plugin for a capability name. It returns false when the
// capability is not configured or its plugin failed during init.
func (m *Manager) Get(name string) (Plugin, bool) {
	p, ok := m.plugins[name]
	if !ok || m.states[name] == StateFailed {
		return nil, false
	}
	return p, true
}

// Lookup returns the plugin for name asserted to the capability interface
// T. It returns false when the capability is absent, failed, or does not
// implement T.
func Lookup[T Plugin](m *Manager, name string) (T, bool) {
	var zero T
	p, ok := m.Get(name)
	if !ok {
		return zero, false
	}
	typed, ok := p.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
