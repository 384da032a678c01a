package schematic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/protoplast/internal/types"
	"github.com/conneroisu/protoplast/internal/world"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Kind{Name: "marker"}))
	assert.Error(t, r.Register(Kind{Name: "marker"}))
	assert.Error(t, r.Register(Kind{}))

	_, ok := r.Lookup("marker")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { r.MustRegister(Kind{Name: "marker"}) })
}

func TestDefaultRegistryNames(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{TypeChild, TypeComponent, TypeComponents, TypeInclude}, r.Names())
}

func TestRegistryValidate(t *testing.T) {
	r := NewDefaultRegistry()

	testCases := []struct {
		name      string
		schematic Schematic
		wantErr   bool
	}{
		{"component ok", Schematic{Type: TypeComponent, Input: map[string]any{"name": "Health", "value": 10}}, false},
		{"component without name", Schematic{Type: TypeComponent, Input: map[string]any{"value": 10}}, true},
		{"include ok", Schematic{Type: TypeInclude, Input: map[string]any{"template": "Base"}}, false},
		{"child without template", Schematic{Type: TypeChild}, true},
		{"explicit depends", Schematic{Type: TypeComponents, Depends: &Dependency{Template: "Base"}}, false},
		{"explicit depends bad target", Schematic{Type: TypeComponents, Depends: &Dependency{Template: "Base", Target: "sibling"}}, true},
		{"explicit depends empty template", Schematic{Type: TypeComponents, Depends: &Dependency{}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.Validate(tc.schematic)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var unknown *UnknownTypeError
	err := r.Validate(Schematic{Type: "teleport"})
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "teleport", unknown.Type)
}

func TestRegistryDependency(t *testing.T) {
	r := NewDefaultRegistry()

	dep, err := r.Dependency(Schematic{Type: TypeComponent, Input: map[string]any{"name": "Health"}})
	require.NoError(t, err)
	assert.Nil(t, dep)

	dep, err = r.Dependency(Schematic{Type: TypeInclude, Input: map[string]any{"template": "Base"}})
	require.NoError(t, err)
	assert.Equal(t, &Dependency{Template: "Base", Target: TargetSelf}, dep)

	dep, err = r.Dependency(Schematic{Type: TypeChild, Input: map[string]any{"template": "Sword"}})
	require.NoError(t, err)
	assert.Equal(t, TargetChild, dep.Target)

	original := &Dependency{Template: "Base"}
	dep, err = r.Dependency(Schematic{Type: TypeComponents, Depends: original})
	require.NoError(t, err)
	assert.Equal(t, TargetSelf, dep.Target)
	assert.Equal(t, Target(""), original.Target, "stored dependency must not be mutated")
}

func TestCloneIsDeep(t *testing.T) {
	input := map[string]any{
		"name":  "Stats",
		"value": map[string]any{"tags": []any{"a", "b"}},
	}

	clone, err := Clone(input)
	require.NoError(t, err)
	assert.Equal(t, "Stats", clone["name"])

	inner := clone["value"].(map[string]any)
	inner["extra"] = true
	assert.NotContains(t, input["value"].(map[string]any), "extra")

	scalars, err := Clone(map[string]any{
		"int":    100,
		"big":    70000,
		"uint64": uint64(7),
		"float":  float32(1.5),
		"target": TargetChild,
		"list":   []any{int64(3), "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, scalars["int"])
	assert.Equal(t, 70000, scalars["big"])
	assert.Equal(t, uint64(7), scalars["uint64"])
	assert.Equal(t, float32(1.5), scalars["float"])
	assert.Equal(t, TargetChild, scalars["target"])
	assert.Equal(t, []any{int64(3), "x"}, scalars["list"])

	type stats struct {
		Tags []string
	}
	original := stats{Tags: []string{"a"}}
	typed, err := Clone(map[string]any{"stats": original, "weights": []int{1, 2}})
	require.NoError(t, err)
	copied, ok := typed["stats"].(stats)
	require.True(t, ok, "structs keep their type")
	copied.Tags[0] = "b"
	assert.Equal(t, "a", original.Tags[0])
	weights := typed["weights"].([]int)
	assert.Equal(t, []int{1, 2}, weights)

	empty, err := Clone(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestBuiltinComponentKinds(t *testing.T) {
	w := world.NewMemory()
	obj := w.Spawn(types.NoObject)
	ctx := &Context{Entity: world.NewEntity(w, obj), Template: "Orc"}
	r := NewDefaultRegistry()

	component, _ := r.Lookup(TypeComponent)
	require.NoError(t, component.Apply(ctx, map[string]any{"name": "Health", "value": 30}))
	assert.True(t, ctx.Entity.Has("Health"))
	require.NoError(t, component.Remove(ctx, map[string]any{"name": "Health"}))
	assert.False(t, ctx.Entity.Has("Health"))

	components, _ := r.Lookup(TypeComponents)
	require.NoError(t, components.Apply(ctx, map[string]any{"Name": "orc", "Speed": 3}))
	assert.Equal(t, []string{"Name", "Speed"}, w.Capabilities(obj))
	require.NoError(t, components.Remove(ctx, map[string]any{"Name": "orc", "Speed": 3}))
	assert.Empty(t, w.Capabilities(obj))

	include, _ := r.Lookup(TypeInclude)
	assert.Nil(t, include.Apply)
	assert.Nil(t, include.Remove)
}
