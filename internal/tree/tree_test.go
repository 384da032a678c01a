package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/protoplast/internal/cycles"
	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
	"github.com/conneroisu/protoplast/internal/types"
)

const obj = types.ObjectID(42)

func include(id string) schematic.Schematic {
	return schematic.Schematic{Type: schematic.TypeInclude, Input: map[string]any{"template": id}}
}

func child(id string) schematic.Schematic {
	return schematic.Schematic{Type: schematic.TypeChild, Input: map[string]any{"template": id}}
}

func component(name string) schematic.Schematic {
	return schematic.Schematic{Type: schematic.TypeComponent, Input: map[string]any{"name": name}}
}

func newStore(t *testing.T, defs ...registry.Definition) *registry.Store {
	t.Helper()
	store := registry.NewStore()
	for _, def := range defs {
		_, err := store.Insert(def)
		require.NoError(t, err)
	}
	return store
}

func ids(t *Tree) []string {
	out := make([]string, t.Len())
	for i := 0; i < t.Len(); i++ {
		out[i] = t.Node(i).Template.ID
	}
	return out
}

func TestBuildSingleTemplate(t *testing.T) {
	store := newStore(t, registry.Definition{ID: "Leaf", Schematics: []schematic.Schematic{component("Health")}})
	builder := NewBuilder(store, schematic.NewDefaultRegistry(), cycles.Always(cycles.Panic))

	tr, err := builder.Build("Leaf", obj)
	require.NoError(t, err)
	require.Equal(t, 1, tr.Len())

	root := tr.Root()
	assert.True(t, root.IsRoot())
	assert.Equal(t, obj, root.Object)
	assert.Equal(t, -1, root.Schematic)
	assert.Empty(t, root.Children)
	assert.Empty(t, tr.Pruned())
}

func TestBuildNested(t *testing.T) {
	store := newStore(t,
		registry.Definition{ID: "Leaf"},
		registry.Definition{ID: "Sword", Schematics: []schematic.Schematic{include("Leaf")}},
		registry.Definition{ID: "Root", Schematics: []schematic.Schematic{
			component("Health"),
			include("Leaf"),
			child("Sword"),
		}},
	)
	builder := NewBuilder(store, schematic.NewDefaultRegistry(), nil)

	tr, err := builder.Build("Root", obj)
	require.NoError(t, err)

	assert.Equal(t, []string{"Root", "Leaf", "Sword", "Leaf"}, ids(tr))
	assert.Equal(t, []string{"Root", "Leaf", "Sword"}, tr.Templates())

	root := tr.Root()
	children := tr.Children(root)
	require.Len(t, children, 2)

	leaf, sword := children[0], children[1]
	assert.Equal(t, 1, leaf.Schematic)
	assert.Equal(t, schematic.TargetSelf, leaf.Target)
	assert.Equal(t, obj, leaf.Object)
	assert.Equal(t, 1, leaf.Depth)

	assert.Equal(t, 2, sword.Schematic)
	assert.Equal(t, schematic.TargetChild, sword.Target)
	assert.Equal(t, types.NoObject, sword.Object)

	swordLeaf := tr.Children(sword)[0]
	assert.Equal(t, types.NoObject, swordLeaf.Object, "self edge below a child edge has no object yet")
	assert.Equal(t, 2, swordLeaf.Depth)
	assert.Equal(t, sword.Index, swordLeaf.Parent)
}

func TestBuildUnknownRoot(t *testing.T) {
	builder := NewBuilder(newStore(t), schematic.NewDefaultRegistry(), nil)

	_, err := builder.Build("Ghost", obj)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTemplate))
}

func TestBuildMissingDependency(t *testing.T) {
	store := newStore(t,
		registry.Definition{ID: "Leaf"},
		registry.Definition{ID: "Root", Schematics: []schematic.Schematic{include("Leaf"), include("X")}},
	)
	builder := NewBuilder(store, schematic.NewDefaultRegistry(), nil)

	tr, err := builder.Build("Root", obj)
	assert.Nil(t, tr, "partial trees are never returned")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMissingDependency))
	assert.ErrorIs(t, err, errors.ErrMissingDependency("X", "Root"))
	assert.Contains(t, err.Error(), "missing dependency: X")
}

func cyclicStore(t *testing.T) *registry.Store {
	return newStore(t,
		registry.Definition{ID: "A", Schematics: []schematic.Schematic{component("Health"), include("B")}},
		registry.Definition{ID: "B", Schematics: []schematic.Schematic{include("A"), component("Mana")}},
	)
}

func TestBuildCycleCancel(t *testing.T) {
	var seen []cycles.Cycle
	policy := func(c cycles.Cycle) cycles.Response {
		seen = append(seen, c)
		return cycles.Cancel
	}
	builder := NewBuilder(cyclicStore(t), schematic.NewDefaultRegistry(), policy)

	tr, err := builder.Build("A", obj)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, ids(tr))
	require.Len(t, seen, 1)
	assert.Equal(t, []string{"A", "B", "A"}, seen[0].Path)
	assert.Equal(t, 0, seen[0].Schematic)
	assert.Equal(t, seen, tr.Pruned())
}

func TestBuildCyclePanic(t *testing.T) {
	builder := NewBuilder(cyclicStore(t), schematic.NewDefaultRegistry(), cycles.Always(cycles.Panic))

	tr, err := builder.Build("A", obj)
	assert.Nil(t, tr)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCycleDetected))
	assert.Contains(t, err.Error(), "A -> B -> A")
}

func TestBuildCyclePolicyChoosesPerCycle(t *testing.T) {
	store := newStore(t,
		registry.Definition{ID: "Self", Schematics: []schematic.Schematic{include("Self")}},
		registry.Definition{ID: "A", Schematics: []schematic.Schematic{include("B")}},
		registry.Definition{ID: "B", Schematics: []schematic.Schematic{include("A")}},
	)
	// tolerate self references, reject longer cycles
	policy := func(c cycles.Cycle) cycles.Response {
		if c.Len() == 1 {
			return cycles.Cancel
		}
		return cycles.Panic
	}
	builder := NewBuilder(store, schematic.NewDefaultRegistry(), policy)

	tr, err := builder.Build("Self", obj)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Len())

	_, err = builder.Build("A", obj)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCycleDetected))
}

func TestBuildDiamondIsNotACycle(t *testing.T) {
	store := newStore(t,
		registry.Definition{ID: "Base"},
		registry.Definition{ID: "Left", Schematics: []schematic.Schematic{include("Base")}},
		registry.Definition{ID: "Right", Schematics: []schematic.Schematic{include("Base")}},
		registry.Definition{ID: "Top", Schematics: []schematic.Schematic{include("Left"), include("Right")}},
	)
	builder := NewBuilder(store, schematic.NewDefaultRegistry(), cycles.Always(cycles.Panic))

	tr, err := builder.Build("Top", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"Top", "Left", "Base", "Right", "Base"}, ids(tr))
}

func TestBuildFromSnapshot(t *testing.T) {
	store := newStore(t,
		registry.Definition{ID: "Leaf"},
		registry.Definition{ID: "Root", Schematics: []schematic.Schematic{include("Leaf")}},
	)
	old, _ := store.Get("Root")
	_, _, err := store.Replace(registry.Definition{ID: "Root"})
	require.NoError(t, err)

	builder := NewBuilder(store, schematic.NewDefaultRegistry(), nil)

	tr, err := builder.BuildFrom(old, obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"Root", "Leaf"}, ids(tr))

	tr, err = builder.Build("Root", obj)
	require.NoError(t, err)
	assert.Equal(t, []string{"Root"}, ids(tr))
}

func TestBuildInvalidDependency(t *testing.T) {
	store := newStore(t, registry.Definition{ID: "Root", Schematics: []schematic.Schematic{
		{Type: schematic.TypeComponents, Depends: &schematic.Dependency{Template: "Leaf", Target: "elsewhere"}},
	}})
	builder := NewBuilder(store, schematic.NewDefaultRegistry(), nil)

	_, err := builder.Build("Root", obj)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidDefinition))
}
