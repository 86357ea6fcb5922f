package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// fakePlugin is a minimal Plugin for graph tests.
type fakePlugin struct {
	name     string
	requires []string
	optional []string
	initErr  error
	inited   bool
}

func (f *fakePlugin) Name() string       { return f.name }
func (f *fakePlugin) Requires() []string { return f.requires }
func (f *fakePlugin) Optional() []string { return f.optional }
func (f *fakePlugin) Init(_ context.Context, _ *InitContext) error {
	f.inited = true
	return f.initErr
}

func register(t *testing.T, m *Manager, plugins ...*fakePlugin) {
	t.Helper()
	for _, p := range plugins {
		require.NoError(t, m.Register(p))
	}
}

func TestRegister_DuplicateCapability(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&fakePlugin{name: CapTextEmbedder}))

	err := m.Register(&fakePlugin{name: CapTextEmbedder})
	var dup *DuplicateCapabilityError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, CapTextEmbedder, dup.Name)
}

func TestResolve_MissingDependency(t *testing.T) {
	m := NewManager()
	register(t, m, &fakePlugin{name: CapSimilarity, requires: []string{CapTextEmbedder}})

	_, err := m.Resolve()
	var missing *MissingDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, CapSimilarity, missing.Plugin)
	assert.Equal(t, CapTextEmbedder, missing.Dependency)
}

func TestResolve_DependencyBeforeDependent(t *testing.T) {
	m := NewManager()
	register(t, m,
		&fakePlugin{name: CapSimilarity, requires: []string{CapTextEmbedder}},
		&fakePlugin{name: CapTextEmbedder},
		&fakePlugin{name: CapDatabase, optional: []string{CapTextEmbedder}},
	)

	ordered, err := m.Resolve()
	require.NoError(t, err)
	require.Len(t, ordered, 3)

	pos := make(map[string]int)
	for i, p := range ordered {
		pos[p.Name()] = i
	}
	assert.Less(t, pos[CapTextEmbedder], pos[CapSimilarity], "required capability must init first")
	assert.Less(t, pos[CapTextEmbedder], pos[CapDatabase], "optional edge still orders init when both exist")
}

func TestResolve_RegistrationOrderTieBreak(t *testing.T) {
	m := NewManager()
	register(t, m,
		&fakePlugin{name: "c"},
		&fakePlugin{name: "a"},
		&fakePlugin{name: "b"},
	)

	ordered, err := m.Resolve()
	require.NoError(t, err)

	names := []string{ordered[0].Name(), ordered[1].Name(), ordered[2].Name()}
	assert.Equal(t, []string{"c", "a", "b"}, names, "independent plugins keep registration order")
}

func TestResolve_CyclicDependency(t *testing.T) {
	m := NewManager()
	register(t, m,
		&fakePlugin{name: "a", requires: []string{"b"}},
		&fakePlugin{name: "b", requires: []string{"c"}},
		&fakePlugin{name: "c", requires: []string{"a"}},
	)

	_, err := m.Resolve()
	var cyclic *CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cyclic.Members)
}

func TestResolve_OptionalAbsentIsNotAnError(t *testing.T) {
	m := NewManager()
	register(t, m, &fakePlugin{name: CapDatabase, optional: []string{CapTextEmbedder}})

	ordered, err := m.Resolve()
	require.NoError(t, err)
	assert.Len(t, ordered, 1)
}

func TestInitialize_OrderAndStates(t *testing.T) {
	m := NewManager()
	embedder := &fakePlugin{name: CapTextEmbedder}
	sim := &fakePlugin{name: CapSimilarity, requires: []string{CapTextEmbedder}}
	register(t, m, sim, embedder)

	_, err := m.Resolve()
	require.NoError(t, err)

	ledger := types.NewLedger()
	require.NoError(t, m.Initialize(context.Background(), t.TempDir(), ledger))

	assert.True(t, embedder.inited)
	assert.True(t, sim.inited)
	assert.Equal(t, StateInitialized, m.State(CapTextEmbedder))
	assert.Equal(t, StateInitialized, m.State(CapSimilarity))
	assert.Zero(t, ledger.Len())
}

func TestInitialize_FailedPluginTreatedAsAbsent(t *testing.T) {
	m := NewManager()
	register(t, m, &fakePlugin{name: CapImageProcessor, initErr: errors.New("codec unavailable")})

	_, err := m.Resolve()
	require.NoError(t, err)

	ledger := types.NewLedger()
	require.NoError(t, m.Initialize(context.Background(), t.TempDir(), ledger))

	assert.Equal(t, StateFailed, m.State(CapImageProcessor))
	_, ok := m.Get(CapImageProcessor)
	assert.False(t, ok, "failed plugin must look absent")
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, types.StagePluginInit, ledger.All()[0].Stage)
}

func TestInitialize_HardDependentOfFailedPluginIsFatal(t *testing.T) {
	m := NewManager()
	register(t, m,
		&fakePlugin{name: CapTextEmbedder, initErr: errors.New("model missing")},
		&fakePlugin{name: CapSimilarity, requires: []string{CapTextEmbedder}},
	)

	_, err := m.Resolve()
	require.NoError(t, err)

	err = m.Initialize(context.Background(), t.TempDir(), types.NewLedger())
	var failed *DependencyFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, CapSimilarity, failed.Plugin)
	assert.Equal(t, CapTextEmbedder, failed.Dependency)
}

func TestInitialize_BeforeResolve(t *testing.T) {
	m := NewManager()
	err := m.Initialize(context.Background(), t.TempDir(), types.NewLedger())
	assert.Error(t, err)
}

func TestLookup_TypedHandle(t *testing.T) {
	m := NewManager()
	register(t, m, &fakePlugin{name: "custom"})
	_, err := m.Resolve()
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background(), t.TempDir(), types.NewLedger()))

	// The fake does not implement TextEmbedder.
	_, ok := Lookup[TextEmbedder](m, "custom")
	assert.False(t, ok)

	// Unconfigured capability.
	_, ok = Lookup[TextEmbedder](m, CapTextEmbedder)
	assert.False(t, ok)

	p, ok := Lookup[Plugin](m, "custom")
	require.True(t, ok)
	assert.Equal(t, "custom", p.Name())
}
